// Package services – TelemetryEmitter
//
// This file implements telemetry emission for answered questions: the
// per-answer assessment event (published to the telemetry topic and forwarded
// to the external dispatch service) and the drop-off timing event (elapsed
// time since the system last sent this user a message). Everything here is
// best effort: failures are logged and never reach the turn pipeline.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/convoforms/go-form-gateway/internal/domain"
	"github.com/convoforms/go-form-gateway/internal/repo"
	"github.com/convoforms/go-form-gateway/internal/wire"
)

// LastMessageSource is the cache side of the last-sent-message lookup.
type LastMessageSource interface {
	Get(ctx context.Context, userID string) (*domain.SentMessage, error)
}

// EventPublisher publishes string-encoded events to a named topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic, payload string) error
}

// TelemetrySink is the external telemetry dispatch service.
type TelemetrySink interface {
	SendEvent(ctx context.Context, userID, payload string) error
	SendDropOff(ctx context.Context, userID, flow string, questionIndex int, elapsedMs int64) error
}

// AssessmentEvent describes one answered question for analytics.
type AssessmentEvent struct {
	OrgID            string `json:"orgID,omitempty"`
	Channel          string `json:"channel"`
	Provider         string `json:"provider"`
	ProducerID       string `json:"producerID"`
	UserID           string `json:"userID"`
	QuestionXPath    string `json:"questionXPath"`
	QuestionType     string `json:"questionType,omitempty"`
	Answer           string `json:"answer"`
	DeviceID         string `json:"deviceID,omitempty"`
	ChannelMessageID string `json:"channelMessageID,omitempty"`
	EndOfForm        bool   `json:"endOfForm"`
}

// TelemetryEmitter resolves drop-off timing and dispatches telemetry events.
type TelemetryEmitter struct {
	DB             *gorm.DB
	Cache          LastMessageSource // optional; nil skips straight to durable storage
	Publisher      EventPublisher
	Dispatch       TelemetrySink
	Topic          string
	ProducerID     string
	SystemSenderID string

	// Now is a clock seam for tests; defaults to time.Now.
	Now func() time.Time
}

// EmitDropOff computes how long the user took to answer the previously sent
// question and forwards a drop-off event, provided the question payload
// carries both a flow identifier and a question index. The lookup uses the
// last message sent before this turn's reply; it is independent of the reply
// being built.
func (t *TelemetryEmitter) EmitDropOff(ctx context.Context, app, userID string, questionPayload *wire.Payload) {
	last, err := t.lastSent(ctx, app, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("app", app).Msg("no last-sent message for drop-off")
		return
	}

	now := time.Now()
	if t.Now != nil {
		now = t.Now()
	}
	elapsedMs := now.Sub(last.Timestamp).Milliseconds()
	elapsedSecs := int64(now.Sub(last.Timestamp).Seconds())

	if questionPayload == nil || questionPayload.Flow == "" || questionPayload.QuestionIndex == nil {
		log.Info().
			Str("user_id", userID).
			Int64("elapsed_ms", elapsedMs).
			Msg("drop-off skipped: question payload has no flow or index")
		return
	}

	log.Debug().
		Str("user_id", userID).
		Str("flow", questionPayload.Flow).
		Int("question_index", *questionPayload.QuestionIndex).
		Int64("elapsed_ms", elapsedMs).
		Int64("elapsed_secs", elapsedSecs).
		Msg("drop-off")

	if t.Dispatch == nil {
		return
	}
	if err := t.Dispatch.SendDropOff(ctx, last.UserID, questionPayload.Flow, *questionPayload.QuestionIndex, elapsedMs); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("drop-off dispatch failed")
	}
}

// EmitAssessment builds the per-answer event and sends it to the telemetry
// topic and the external dispatch service. Both legs are independent;
// failures are logged only.
func (t *TelemetryEmitter) EmitAssessment(ctx context.Context, ev AssessmentEvent) {
	ev.ProducerID = t.ProducerID
	raw, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("assessment event encode failed")
		return
	}
	payload := string(raw)

	if t.Publisher != nil && t.Topic != "" {
		if err := t.Publisher.Publish(ctx, t.Topic, payload); err != nil {
			log.Warn().Err(err).Str("topic", t.Topic).Msg("telemetry publish failed")
		}
	}
	if t.Dispatch != nil {
		if err := t.Dispatch.SendEvent(ctx, ev.UserID, payload); err != nil {
			log.Warn().Err(err).Str("user_id", ev.UserID).Msg("telemetry dispatch failed")
		}
	}
}

// lastSent resolves the user's last-sent message cache-first: a cache hit
// returns immediately; a miss or cache error falls back to the newest
// durable row where state = SENT and from = the system sender. The cache is
// never written from here.
func (t *TelemetryEmitter) lastSent(ctx context.Context, app, userID string) (*domain.SentMessage, error) {
	if t.Cache != nil {
		if m, err := t.Cache.Get(ctx, userID); err == nil && m != nil {
			return m, nil
		} else if err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("last-sent cache lookup fell through")
		}
	}
	return repo.LatestSentMessage(ctx, t.DB, app, userID, t.SystemSenderID, string(wire.StateSent))
}
