// Package cache provides the read-only, cache-first side of the
// last-sent-message lookup. The delivery pipeline populates Redis with the
// most recent message sent to each user; this gateway only consults it and
// falls back to durable storage on a miss or error. No writes happen here.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/convoforms/go-form-gateway/internal/domain"
)

// ErrMiss is returned when no cached record exists for a user.
var ErrMiss = errors.New("cache miss")

// LastMessageCache reads cached SentMessage records by user ID.
type LastMessageCache struct {
	RDB    *goredis.Client
	Prefix string // environment prefix on keys, e.g. "prod"
}

// NewLastMessageCache connects to Redis and verifies the connection.
func NewLastMessageCache(addr, password string, db int, prefix string) (*LastMessageCache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &LastMessageCache{RDB: rdb, Prefix: prefix}, nil
}

// Get returns the cached last-sent message for userID, ErrMiss when the key
// is absent, or the underlying error when Redis or decoding fails. Callers
// treat miss and error the same way: fall back to the durable store.
func (c *LastMessageCache) Get(ctx context.Context, userID string) (*domain.SentMessage, error) {
	raw, err := c.RDB.Get(ctx, c.key(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var m domain.SentMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Close releases the Redis connection.
func (c *LastMessageCache) Close() error {
	if c == nil || c.RDB == nil {
		return nil
	}
	return c.RDB.Close()
}

func (c *LastMessageCache) key(userID string) string {
	return c.Prefix + "-last-sent-" + userID
}
