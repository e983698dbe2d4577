package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/model"
)

func TestVerificationCodeLifecycle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	missing, err := GetVerificationCode(ctx, database, "ana@example.com", model.PurposeSignup)
	if err != nil {
		t.Fatalf("GetVerificationCode: %v", err)
	}
	if missing != nil {
		t.Fatal("expected no code before issuing one")
	}

	PutVerificationCode(ctx, database, "Ana@example.com", model.PurposeSignup, "hash-1", now, now.Add(10*time.Minute))
	if err := MarkCodeUsed(ctx, database, "ana@example.com", model.PurposeSignup, now); err != nil {
		t.Fatalf("MarkCodeUsed: %v", err)
	}
	if err := MarkCodeUsed(ctx, database, "ana@example.com", model.PurposeSignup, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected a used code to stay used, got %v", err)
	}

	// Reissuing replaces the hash and clears used_at.
	PutVerificationCode(ctx, database, "ana@example.com", model.PurposeSignup, "hash-2", now, now.Add(10*time.Minute))

	c, _ := GetVerificationCode(ctx, database, "ana@example.com", model.PurposeSignup)
	if c == nil || c.CodeHash != "hash-2" || c.UsedAt != nil {
		t.Errorf("unexpected code after reissue: %+v", c)
	}
	if c.ExpiresAt.Before(now) {
		t.Errorf("expected expiry in the future, got %v", c.ExpiresAt)
	}
}
