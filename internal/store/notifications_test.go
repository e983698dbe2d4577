package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/garderoba/internal/db"
)

func TestMarkReadAndClearNotifications(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateRequest(ctx, database, "ana@example.com", "Ana", "Boots", "AXSER")
	CreateRequest(ctx, database, "ana@example.com", "Ana", "Coat", "AXSER")
	CreateRequest(ctx, database, "bob@example.com", "Bob", "Coat", "AXSER")

	unread, err := CountUnread(ctx, database, "ana@example.com")
	if err != nil {
		t.Fatalf("CountUnread: %v", err)
	}
	if unread != 2 {
		t.Fatalf("expected 2 unread, got %d", unread)
	}

	notifications, _ := ListNotifications(ctx, database, "ana@example.com")
	id := notifications[0].ID

	// Only the owner may mark it read.
	if err := MarkNotificationRead(ctx, database, "bob@example.com", id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user, got %v", err)
	}
	if err := MarkNotificationRead(ctx, database, "ana@example.com", id); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}

	unread, _ = CountUnread(ctx, database, "ana@example.com")
	if unread != 1 {
		t.Errorf("expected 1 unread, got %d", unread)
	}

	if err := ClearNotifications(ctx, database, "ana@example.com"); err != nil {
		t.Fatalf("ClearNotifications: %v", err)
	}
	notifications, _ = ListNotifications(ctx, database, "ana@example.com")
	if len(notifications) != 0 {
		t.Errorf("expected no notifications after clear, got %d", len(notifications))
	}
	others, _ := ListNotifications(ctx, database, "bob@example.com")
	if len(others) != 1 {
		t.Errorf("expected other user's notifications untouched, got %d", len(others))
	}
}
