// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ConversationState model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a state row is not found, GetState returns gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/convoforms/go-form-gateway/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer.
var ErrNotFound = gorm.ErrRecordNotFound

// GetState fetches the conversation state for (userID, formID).
// If the record does not exist, it returns ErrNotFound.
func GetState(ctx context.Context, db *gorm.DB, userID, formID string) (*domain.ConversationState, error) {
	var st domain.ConversationState
	err := db.WithContext(ctx).
		Where("user_id = ? AND form_id = ?", userID, formID).
		First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveState upserts the conversation state for (userID, formID) with
// last-write-wins semantics. PreviousPath and PreviousInstanceXML are written
// together in a single row write; a save can never leave one of the two stale.
func SaveState(ctx context.Context, db *gorm.DB, userID, formID, previousPath, instanceXML string) (*domain.ConversationState, error) {
	st := &domain.ConversationState{
		ID:                  uuid.NewString(),
		UserID:              userID,
		FormID:              formID,
		PreviousPath:        previousPath,
		PreviousInstanceXML: instanceXML,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "form_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"previous_path", "previous_instance_xml", "updated_at",
			}),
		}).
		Create(st).Error
	if err != nil {
		return nil, err
	}
	return st, nil
}
