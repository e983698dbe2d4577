package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/model"
)

func TestCreateRequestDefaultsBrandAndNotifies(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	req, err := CreateRequest(ctx, database, "Ana@Example.com", "Ana", "Silk Scarf", " ")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if req.Brand != model.DefaultBrand {
		t.Errorf("expected default brand, got %q", req.Brand)
	}
	if req.Status != model.RequestPending {
		t.Errorf("expected pending, got %q", req.Status)
	}
	if req.UserID != "ana@example.com" {
		t.Errorf("expected normalized user id, got %q", req.UserID)
	}

	notifications, _ := ListNotifications(ctx, database, "ana@example.com")
	if len(notifications) != 1 || notifications[0].Kind != model.NotifyRequestSent {
		t.Errorf("expected one request_sent notification, got %+v", notifications)
	}
}

func TestLatestActiveRequestSkipsDenied(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first, _ := CreateRequest(ctx, database, "ana@example.com", "Ana", "Boots", "AXSER")
	second, _ := CreateRequest(ctx, database, "ana@example.com", "Ana", "Coat", "AXSER")

	latest, err := LatestActiveRequest(ctx, database, "ana@example.com")
	if err != nil {
		t.Fatalf("LatestActiveRequest: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Fatalf("expected newest request %s, got %+v", second.ID, latest)
	}

	DenyRequest(ctx, database, second.ID)

	latest, _ = LatestActiveRequest(ctx, database, "ana@example.com")
	if latest == nil || latest.ID != first.ID {
		t.Fatalf("expected fallback to %s, got %+v", first.ID, latest)
	}

	newest, _ := LatestRequest(ctx, database, "ana@example.com")
	if newest.ID != second.ID || newest.Status != model.RequestDenied {
		t.Errorf("expected newest request denied, got %+v", newest)
	}

	none, _ := LatestActiveRequest(ctx, database, "bob@example.com")
	if none != nil {
		t.Error("expected nil for user without requests")
	}
}

func TestResolveRequestNotifiesWithCode(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	req, _ := CreateRequest(ctx, database, "ana@example.com", "Ana", "Silk Scarf", "AXSER")

	resolved, err := ResolveRequest(ctx, database, req.ID, "100001")
	if err != nil {
		t.Fatalf("ResolveRequest: %v", err)
	}
	if resolved.Status != model.RequestResolved || resolved.ResolvedCode != "100001" {
		t.Errorf("unexpected request: %+v", resolved)
	}

	notifications, _ := ListNotifications(ctx, database, "ana@example.com")
	var received []model.Notification
	for _, n := range notifications {
		if n.Kind == model.NotifyCodeReceived {
			received = append(received, n)
		}
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 code_received notification, got %d", len(received))
	}
	if received[0].Title != CodeReceivedTitle || !strings.Contains(received[0].Message, "100001") {
		t.Errorf("unexpected notification: %+v", received[0])
	}

	// Terminal states are final.
	if _, err := DenyRequest(ctx, database, req.ID); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected ErrNotPending, got %v", err)
	}
	if _, err := ResolveRequest(ctx, database, "missing", "100001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDenyRequestMessage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	req, _ := CreateRequest(ctx, database, "ana@example.com", "Ana", "Wool Coat", "Maison")
	DenyRequest(ctx, database, req.ID)

	notifications, _ := ListNotifications(ctx, database, "ana@example.com")
	if len(notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifications))
	}
	denied := notifications[0]
	if denied.Kind != model.NotifyRequestDenied {
		t.Fatalf("expected newest notification to be the denial, got %s", denied.Kind)
	}
	if denied.Message != "Your request for Wool Coat (Maison) was not approved." {
		t.Errorf("unexpected message %q", denied.Message)
	}

	got, _ := GetRequest(ctx, database, req.ID)
	if got.ResolvedCode != "" {
		t.Errorf("expected no code on a denied request, got %q", got.ResolvedCode)
	}
}
