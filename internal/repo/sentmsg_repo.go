// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the SentMessage
// model: the durable side of the last-sent-message lookup.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/convoforms/go-form-gateway/internal/domain"
)

// LatestSentMessage returns the most recent message the system sent to a
// user: the newest row where message_state = state and from_id = fromID,
// filtered by app and userID. If no such row exists, it returns ErrNotFound.
func LatestSentMessage(ctx context.Context, db *gorm.DB, app, userID, fromID, state string) (*domain.SentMessage, error) {
	var m domain.SentMessage
	err := db.WithContext(ctx).
		Where("app = ? AND user_id = ? AND from_id = ? AND message_state = ?", app, userID, fromID, state).
		Order("timestamp desc").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateSentMessage records one outbound message. The turn pipeline itself
// only reads this table; rows are written by the delivery side (and by tests).
func CreateSentMessage(ctx context.Context, db *gorm.DB, m domain.SentMessage) (*domain.SentMessage, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
