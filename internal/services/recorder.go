// Package services – Recorder
//
// This file implements lazy, dedup-aware recording of form questions and
// per-user answers. Questions are registered on first observation and reused
// afterwards; assessments are an append-only answer log. Telemetry for the
// answered question runs as detached side effects that can never block or
// fail the assessment write.
package services

import (
	"context"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/convoforms/go-form-gateway/internal/domain"
	"github.com/convoforms/go-form-gateway/internal/forms"
	"github.com/convoforms/go-form-gateway/internal/repo"
	"github.com/convoforms/go-form-gateway/internal/wire"
)

// RecordRequest carries everything one answer event needs.
type RecordRequest struct {
	FormID       string
	FormVersion  string // version reported by this turn's traversal result
	PreviousPath string // position marker the answer responded to
	Answer       string

	// PrevQuestion is the previously rendered question; nil on a starting
	// message. CurrentQuestion is this turn's (not yet answered) question,
	// used as the registration fallback.
	PrevQuestion    *forms.QuestionDescriptor
	CurrentQuestion *forms.QuestionDescriptor

	// QuestionPayload is the rendered payload of the question being
	// assessed; its flow and index drive drop-off telemetry.
	QuestionPayload *wire.Payload

	App               string
	Channel           string
	Provider          string
	UserID            string
	DeviceID          string
	EncryptedDeviceID string
	ChannelMessageID  string
	BotID             string
	OrgID             string
	CurrentIndex      string // this turn's position marker, for the end-of-form flag
	IsStartingMessage bool
}

// Recorder registers questions lazily and appends assessments.
type Recorder struct {
	DB        *gorm.DB
	Telemetry *TelemetryEmitter
}

// Record runs the full question/assessment flow for one turn. It is invoked
// as an independent side effect: every failure is logged and swallowed so
// the turn's reply is never affected.
func (r *Recorder) Record(ctx context.Context, req RecordRequest) {
	q := r.resolveQuestion(ctx, req)
	if q == nil {
		return
	}

	// Detached side computations; each recovers and logs on its own so
	// neither can prevent the assessment row from landing.
	if !req.IsStartingMessage && r.Telemetry != nil {
		go r.detached("drop-off", func() {
			r.Telemetry.EmitDropOff(context.WithoutCancel(ctx), req.App, req.UserID, req.QuestionPayload)
		})
		go r.detached("assessment event", func() {
			r.Telemetry.EmitAssessment(context.WithoutCancel(ctx), AssessmentEvent{
				OrgID:            req.OrgID,
				Channel:          req.Channel,
				Provider:         req.Provider,
				UserID:           req.UserID,
				QuestionXPath:    q.XPath,
				QuestionType:     q.QuestionType,
				Answer:           req.Answer,
				DeviceID:         req.EncryptedDeviceID,
				ChannelMessageID: req.ChannelMessageID,
				EndOfForm:        forms.IsTerminal(req.CurrentIndex),
			})
		})
	}

	a := domain.Assessment{
		QuestionID: q.ID,
		UserID:     req.UserID,
		Answer:     req.Answer,
	}
	if req.DeviceID != "" {
		if id, err := uuid.Parse(req.DeviceID); err == nil {
			a.DeviceID = &id
		} else {
			log.Warn().Str("device_id", req.DeviceID).Msg("unparseable device id, recording without it")
		}
	}
	if req.BotID != "" {
		if id, err := uuid.Parse(req.BotID); err == nil {
			a.BotID = id
		} else {
			log.Warn().Str("bot_id", req.BotID).Msg("unparseable bot id on assessment")
		}
	}

	saved, err := repo.CreateAssessment(ctx, r.DB, a)
	if err != nil {
		log.Error().Err(err).
			Str("question_id", q.ID).
			Str("user_id", req.UserID).
			Msg("assessment save failed")
		return
	}
	log.Info().
		Str("assessment_id", saved.ID).
		Str("question_id", q.ID).
		Str("xpath", q.XPath).
		Msg("assessment saved")
}

// resolveQuestion finds the canonical Question row for the answered path, or
// registers one. When rows exist, the first (oldest) is canonical and no new
// row is created. When none exists, the previously rendered question is
// inserted — or, on a starting message, the current not-yet-answered one.
func (r *Recorder) resolveQuestion(ctx context.Context, req RecordRequest) *domain.Question {
	existing, err := repo.FindQuestions(ctx, r.DB, req.PreviousPath, req.FormID, req.FormVersion)
	if err != nil {
		log.Error().Err(err).
			Str("xpath", req.PreviousPath).
			Str("form_id", req.FormID).
			Msg("question lookup failed")
		return nil
	}
	if len(existing) > 0 {
		return &existing[0]
	}

	desc := req.PrevQuestion
	if desc == nil {
		desc = req.CurrentQuestion
	}
	if desc == nil {
		log.Warn().
			Str("xpath", req.PreviousPath).
			Str("form_id", req.FormID).
			Msg("no question descriptor to register")
		return nil
	}

	q, err := repo.CreateQuestion(ctx, r.DB, domain.Question{
		FormID:       req.FormID,
		FormVersion:  req.FormVersion,
		XPath:        desc.XPath,
		QuestionType: desc.QuestionType,
		Meta:         desc.Meta,
	})
	if err != nil {
		log.Error().Err(err).
			Str("xpath", desc.XPath).
			Str("form_id", req.FormID).
			Msg("question save failed")
		return nil
	}
	log.Info().Str("question_id", q.ID).Str("xpath", q.XPath).Msg("question registered")
	return q
}

// detached runs fn with panic recovery; telemetry must never take down the
// consumer loop.
func (r *Recorder) detached(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("task", name).
				Msg("telemetry task panicked")
		}
	}()
	fn()
}
