package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/convoforms/go-form-gateway/internal/domain"
	"github.com/convoforms/go-form-gateway/internal/forms"
	"github.com/convoforms/go-form-gateway/internal/repo"
)

func questionCount(t *testing.T, r *Recorder) int64 {
	t.Helper()
	var n int64
	if err := r.DB.Table("questions").Count(&n).Error; err != nil {
		t.Fatalf("count questions: %v", err)
	}
	return n
}

func TestRecorder_ReusesExistingQuestion(t *testing.T) {
	db := newTestDB(t)
	r := &Recorder{DB: db}
	ctx := context.Background()

	existing, err := repo.CreateQuestion(ctx, db, domain.Question{
		FormID: "f1", FormVersion: "1", XPath: "/data/q1", QuestionType: "STRING",
	})
	if err != nil {
		t.Fatalf("seed question: %v", err)
	}

	r.Record(ctx, RecordRequest{
		FormID:       "f1",
		FormVersion:  "1",
		PreviousPath: "/data/q1",
		Answer:       "blue",
		PrevQuestion: &forms.QuestionDescriptor{XPath: "/data/q1", QuestionType: "STRING"},
		UserID:       "u1",
		BotID:        uuid.NewString(),
	})

	if got := questionCount(t, r); got != 1 {
		t.Fatalf("question rows = %d, want 1", got)
	}
	total, err := repo.CountAssessments(ctx, db, existing.ID)
	if err != nil {
		t.Fatalf("count assessments: %v", err)
	}
	if total != 1 {
		t.Fatalf("assessment must reference the existing question, count = %d", total)
	}
}

func TestRecorder_RegistersPreviousQuestion(t *testing.T) {
	db := newTestDB(t)
	r := &Recorder{DB: db}
	ctx := context.Background()

	r.Record(ctx, RecordRequest{
		FormID:       "f1",
		FormVersion:  "1",
		PreviousPath: "/data/q2",
		Answer:       "42",
		PrevQuestion: &forms.QuestionDescriptor{XPath: "/data/q2", QuestionType: "INT", Meta: "How old are you?"},
		CurrentQuestion: &forms.QuestionDescriptor{
			XPath: "/data/q3", QuestionType: "STRING",
		},
		UserID: "u1",
	})

	rows, err := repo.FindQuestions(ctx, db, "/data/q2", "f1", "1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].QuestionType != "INT" || rows[0].Meta != "How old are you?" {
		t.Fatalf("registered wrong descriptor: %+v", rows[0])
	}
}

func TestRecorder_StartingMessageFallsBackToCurrent(t *testing.T) {
	db := newTestDB(t)
	r := &Recorder{DB: db}
	ctx := context.Background()

	r.Record(ctx, RecordRequest{
		FormID:            "f1",
		FormVersion:       "1",
		PreviousPath:      "",
		Answer:            "*",
		CurrentQuestion:   &forms.QuestionDescriptor{XPath: "/data/q1", QuestionType: "STRING"},
		UserID:            "u1",
		IsStartingMessage: true,
	})

	rows, err := repo.FindQuestions(ctx, db, "/data/q1", "f1", "1")
	if err != nil || len(rows) != 1 {
		t.Fatalf("current question not registered: rows=%v err=%v", rows, err)
	}
}

func TestRecorder_SequentialRecordsShareOneQuestion(t *testing.T) {
	db := newTestDB(t)
	r := &Recorder{DB: db}
	ctx := context.Background()

	req := RecordRequest{
		FormID:       "f1",
		FormVersion:  "1",
		PreviousPath: "/data/q1",
		PrevQuestion: &forms.QuestionDescriptor{XPath: "/data/q1"},
		UserID:       "u1",
	}
	req.Answer = "first"
	r.Record(ctx, req)
	req.Answer = "second"
	r.Record(ctx, req)

	if got := questionCount(t, r); got != 1 {
		t.Fatalf("question rows = %d, want 1", got)
	}
	rows, err := repo.FindQuestions(ctx, db, "/data/q1", "f1", "1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	total, err := repo.CountAssessments(ctx, db, rows[0].ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 {
		t.Fatalf("assessments = %d, want 2", total)
	}
}

func TestRecorder_UnparseableDeviceID(t *testing.T) {
	db := newTestDB(t)
	r := &Recorder{DB: db}
	ctx := context.Background()

	r.Record(ctx, RecordRequest{
		FormID:       "f1",
		FormVersion:  "1",
		PreviousPath: "/data/q1",
		Answer:       "x",
		PrevQuestion: &forms.QuestionDescriptor{XPath: "/data/q1"},
		UserID:       "u1",
		DeviceID:     "not-a-uuid",
	})

	var a domain.Assessment
	if err := db.First(&a).Error; err != nil {
		t.Fatalf("assessment missing: %v", err)
	}
	if a.DeviceID != nil {
		t.Fatalf("bad device id must be dropped, got %v", a.DeviceID)
	}
	if a.Answer != "x" {
		t.Fatalf("answer = %q", a.Answer)
	}
}

func TestRecorder_NoDescriptorNoAssessment(t *testing.T) {
	db := newTestDB(t)
	r := &Recorder{DB: db}

	r.Record(context.Background(), RecordRequest{
		FormID:       "f1",
		FormVersion:  "1",
		PreviousPath: "/data/unknown",
		Answer:       "x",
		UserID:       "u1",
	})

	var n int64
	if err := db.Table("assessments").Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("assessment written without a question, count = %d", n)
	}
}
