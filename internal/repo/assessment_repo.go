// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Assessment
// model: an append-only log of answer events.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/convoforms/go-form-gateway/internal/domain"
)

// CreateAssessment appends one answer event. Multiple rows per
// (question, user) are expected when a user revisits a question.
func CreateAssessment(ctx context.Context, db *gorm.DB, a domain.Assessment) (*domain.Assessment, error) {
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// CountAssessments returns the number of assessments recorded against a
// question. Used by operational tooling and tests; the turn pipeline never
// reads assessments back.
func CountAssessments(ctx context.Context, db *gorm.DB, questionID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Assessment{}).
		Where("question_id = ?", questionID).
		Count(&total).Error
	return total, err
}
