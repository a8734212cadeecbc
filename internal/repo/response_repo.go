// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the append-only
// response log.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/convoforms/go-form-gateway/internal/domain"
)

// AppendResponse writes one response-log entry. isFinal marks the reply that
// completed a form. The log is write-only from the gateway's point of view.
func AppendResponse(ctx context.Context, db *gorm.DB, userID, messageText string, isFinal bool) (*domain.ResponseLogEntry, error) {
	e := &domain.ResponseLogEntry{
		ID:              uuid.NewString(),
		UserID:          userID,
		MessageText:     messageText,
		IsFinalResponse: isFinal,
		CreatedAt:       time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}
