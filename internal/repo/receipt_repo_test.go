package repo

import (
	"context"
	"testing"
	"time"
)

func TestCreateReceipt_DuplicateDetected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateReceipt(ctx, db, "bot", "ch-1", time.Hour); err != nil {
		t.Fatalf("first receipt: %v", err)
	}
	if _, err := CreateReceipt(ctx, db, "bot", "ch-1", time.Hour); err != ErrDuplicate {
		t.Fatalf("second receipt err = %v, want ErrDuplicate", err)
	}
	// Same channel message ID under another app is a distinct receipt.
	if _, err := CreateReceipt(ctx, db, "otherbot", "ch-1", time.Hour); err != nil {
		t.Fatalf("other app receipt: %v", err)
	}
}

func TestGetReceipt_ExpiryAndBlankID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := CreateReceipt(ctx, db, "bot", "ch-2", time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := GetReceipt(ctx, db, "bot", "ch-2", now); err != nil {
		t.Fatalf("live receipt: %v", err)
	}
	// Past the TTL the receipt no longer counts.
	if _, err := GetReceipt(ctx, db, "bot", "ch-2", now.Add(2*time.Minute)); err != ErrNotFound {
		t.Fatalf("expired receipt err = %v, want ErrNotFound", err)
	}
	if _, err := GetReceipt(ctx, db, "bot", "  ", now); err != ErrNotFound {
		t.Fatalf("blank ID err = %v, want ErrNotFound", err)
	}
}
