package queue

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/convoforms/go-form-gateway/internal/repo"
	"github.com/convoforms/go-form-gateway/internal/wire"
)

// TurnProcessor turns one inbound envelope into an optional reply.
type TurnProcessor interface {
	Process(ctx context.Context, msg *wire.Message) (*wire.Message, error)
}

// Publisher publishes string payloads to a named topic.
type Publisher interface {
	Publish(ctx context.Context, topic, payload string) error
}

// Consumer reads inbound envelopes from a Redis stream and drives the turn
// processor. Each entry is handled in its own goroutine with panic recovery;
// entries are acked whether the turn succeeded or was dropped, since no
// layer here retries (degraded paths are log-and-continue).
type Consumer struct {
	RDB       *goredis.Client
	DB        *gorm.DB
	Processor TurnProcessor
	Out       Publisher

	Stream        string
	Group         string
	Name          string
	OutboundTopic string
	DedupTTL      time.Duration
	Limiter       *rate.Limiter
}

// Run consumes until ctx is canceled. It creates the consumer group on first
// use and blocks in XReadGroup between deliveries.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.RDB.XGroupCreateMkStream(ctx, c.Stream, c.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}

	log.Info().Str("stream", c.Stream).Str("group", c.Group).Str("consumer", c.Name).Msg("consumer started")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return err
			}
		}

		streams, err := c.RDB.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    c.Group,
			Consumer: c.Name,
			Streams:  []string{c.Stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("stream read failed")
			time.Sleep(time.Second)
			continue
		}

		for _, st := range streams {
			for _, entry := range st.Messages {
				go c.handle(ctx, entry)
			}
		}
	}
}

// handle processes a single stream entry end to end and acks it. A panic
// anywhere in the turn is caught here; the consumer loop never dies with it.
func (c *Consumer) handle(ctx context.Context, entry goredis.XMessage) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("entry_id", entry.ID).
				Msg("turn panicked, dropped")
			turnsTotal.WithLabelValues(outcomeFailed).Inc()
		}
		c.ack(ctx, entry.ID)
		turnDuration.Observe(time.Since(start).Seconds())
	}()

	raw, _ := entry.Values["payload"].(string)
	outcome := c.processPayload(ctx, []byte(raw))
	turnsTotal.WithLabelValues(outcome).Inc()
}

// processPayload parses, dedupes, processes, and publishes one envelope,
// returning the metrics outcome label.
func (c *Consumer) processPayload(ctx context.Context, raw []byte) string {
	msg, err := wire.Parse(raw)
	if err != nil {
		log.Error().Err(err).Msg("inbound envelope unparseable, dropped")
		return outcomeParseErr
	}

	if c.DB != nil && msg.MessageID.ChannelMessageID != "" {
		_, err := repo.CreateReceipt(ctx, c.DB, msg.App, msg.MessageID.ChannelMessageID, c.DedupTTL)
		if errors.Is(err, repo.ErrDuplicate) {
			log.Info().
				Str("channel_message_id", msg.MessageID.ChannelMessageID).
				Msg("redelivered envelope, dropped")
			return outcomeDuplicate
		}
		if err != nil {
			log.Warn().Err(err).Msg("receipt write failed, processing anyway")
		}
	}

	reply, err := c.Processor.Process(ctx, msg)
	if err != nil {
		log.Error().Err(err).Str("user_id", msg.To.UserID).Msg("turn dropped")
		return outcomeDropped
	}
	if reply == nil {
		return outcomeDropped
	}

	out, err := reply.ToXML()
	if err != nil {
		log.Error().Err(err).Msg("reply serialization failed")
		return outcomeFailed
	}
	if err := c.Out.Publish(ctx, c.OutboundTopic, string(out)); err != nil {
		log.Error().Err(err).Str("topic", c.OutboundTopic).Msg("reply publish failed")
		return outcomeFailed
	}
	return outcomeReplied
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.RDB.XAck(ctx, c.Stream, c.Group, id).Err(); err != nil {
		log.Warn().Err(err).Str("entry_id", id).Msg("ack failed")
	}
}
