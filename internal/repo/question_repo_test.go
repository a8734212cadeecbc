package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/convoforms/go-form-gateway/internal/domain"
)

func TestFindQuestions_EmptyRegistry(t *testing.T) {
	db := newTestDB(t)
	rows, err := FindQuestions(context.Background(), db, "/data/q1", "f1", "1")
	if err != nil {
		t.Fatalf("FindQuestions: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty registry, got %d rows", len(rows))
	}
}

func TestCreateQuestion_ThenFind(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created, err := CreateQuestion(ctx, db, domain.Question{
		FormID:       "f1",
		FormVersion:  "1",
		XPath:        "/data/q1",
		QuestionType: "STRING",
		Meta:         "What is your name?",
	})
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated ID")
	}

	rows, err := FindQuestions(ctx, db, "/data/q1", "f1", "1")
	if err != nil {
		t.Fatalf("FindQuestions: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != created.ID {
		t.Fatalf("rows = %+v", rows)
	}

	// Different version is a different identity.
	rows, err = FindQuestions(ctx, db, "/data/q1", "f1", "2")
	if err != nil || len(rows) != 0 {
		t.Fatalf("version 2 rows = %+v err=%v", rows, err)
	}
}

func TestFindQuestions_OldestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := CreateQuestion(ctx, db, domain.Question{FormID: "f1", FormVersion: "1", XPath: "/data/q1"})
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := CreateQuestion(ctx, db, domain.Question{FormID: "f1", FormVersion: "1", XPath: "/data/q1"}); err != nil {
		t.Fatalf("second insert: %v", err)
	}

	rows, err := FindQuestions(ctx, db, "/data/q1", "f1", "1")
	if err != nil {
		t.Fatalf("FindQuestions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected duplicate rows to coexist, got %d", len(rows))
	}
	if rows[0].ID != first.ID {
		t.Fatalf("oldest row must come first: %+v", rows)
	}
}

func TestCreateAssessment_AndCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	q, err := CreateQuestion(ctx, db, domain.Question{FormID: "f1", FormVersion: "1", XPath: "/data/q1"})
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	dev := uuid.New()
	for _, answer := range []string{"yes", "no"} {
		if _, err := CreateAssessment(ctx, db, domain.Assessment{
			QuestionID: q.ID,
			DeviceID:   &dev,
			BotID:      uuid.New(),
			UserID:     "u1",
			Answer:     answer,
		}); err != nil {
			t.Fatalf("CreateAssessment(%q): %v", answer, err)
		}
	}

	total, err := CountAssessments(ctx, db, q.ID)
	if err != nil {
		t.Fatalf("CountAssessments: %v", err)
	}
	if total != 2 {
		t.Fatalf("count = %d, want 2", total)
	}
}

func TestAppendResponse(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e, err := AppendResponse(ctx, db, "u1", "my answer", false)
	if err != nil {
		t.Fatalf("AppendResponse: %v", err)
	}
	if e.ID == "" || e.IsFinalResponse {
		t.Fatalf("entry = %+v", e)
	}

	final, err := AppendResponse(ctx, db, "u1", "done", true)
	if err != nil {
		t.Fatalf("AppendResponse final: %v", err)
	}
	if !final.IsFinalResponse {
		t.Fatalf("final flag lost: %+v", final)
	}

	var count int64
	if err := db.Table("response_log").Where("user_id = ?", "u1").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("log rows = %d, want 2", count)
	}
}
