// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Question
// model: a lazily-populated registry of distinct form questions.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/convoforms/go-form-gateway/internal/domain"
)

// FindQuestions returns all Question rows matching the identity
// (xpath, formID, formVersion), oldest first. An empty slice means the
// question has not been recorded yet. On DB error, it returns the error.
func FindQuestions(ctx context.Context, db *gorm.DB, xpath, formID, formVersion string) ([]domain.Question, error) {
	var out []domain.Question
	err := db.WithContext(ctx).
		Where("xpath = ? AND form_id = ? AND form_version = ?", xpath, formID, formVersion).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CreateQuestion inserts a new Question row and returns it with its generated
// ID. Callers are expected to have checked FindQuestions first; the registry
// is check-then-insert, so two concurrent first visits to the same question
// can both insert a row. Assessments written afterwards consistently
// reference the oldest row.
func CreateQuestion(ctx context.Context, db *gorm.DB, q domain.Question) (*domain.Question, error) {
	q.ID = uuid.NewString()
	q.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}
