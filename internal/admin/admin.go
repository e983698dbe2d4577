// Package admin is the administrator side of access requests: reviewing
// them with a suggested code and approving or denying them.
package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/erazemk/garderoba/internal/feed"
	"github.com/erazemk/garderoba/internal/metrics"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

// Snapshot is the full catalog and request list as the dashboard shows them.
type Snapshot struct {
	Garments []model.Garment       `json:"garments"`
	Requests []model.AccessRequest `json:"requests"`
}

// Service resolves access requests.
type Service struct {
	DB   *sql.DB
	Feed feed.Publisher
}

// ListRequests returns every request, newest first. Pending requests carry
// the code of the catalog garment with the same name, if any.
func (s *Service) ListRequests(ctx context.Context) ([]model.AccessRequest, error) {
	garments, err := store.ListGarments(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	requests, err := store.ListRequests(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	suggest(requests, garments)
	return requests, nil
}

// Snapshot reloads the catalog and requests.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	garments, err := store.ListGarments(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	requests, err := store.ListRequests(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	suggest(requests, garments)
	if garments == nil {
		garments = []model.Garment{}
	}
	if requests == nil {
		requests = []model.AccessRequest{}
	}
	return &Snapshot{Garments: garments, Requests: requests}, nil
}

// Resolve approves a pending request with code and sends the user their PIN.
func (s *Service) Resolve(ctx context.Context, requestID, code string) (*Snapshot, error) {
	code = strings.TrimSpace(code)
	if err := model.ValidateSecurityCode(code); err != nil {
		return nil, err
	}

	req, err := store.ResolveRequest(ctx, s.DB, requestID, code)
	if err != nil {
		return nil, fmt.Errorf("resolving request %s: %w", requestID, err)
	}
	metrics.AccessRequests.WithLabelValues(model.RequestResolved).Inc()
	slog.Info("access request resolved", "request", req.ID, "user", req.UserID, "garment", req.GarmentName)

	s.announce(ctx, req.UserID)
	return s.Snapshot(ctx)
}

// Deny rejects a pending request and tells the user.
func (s *Service) Deny(ctx context.Context, requestID string) (*Snapshot, error) {
	req, err := store.DenyRequest(ctx, s.DB, requestID)
	if err != nil {
		return nil, fmt.Errorf("denying request %s: %w", requestID, err)
	}
	metrics.AccessRequests.WithLabelValues(model.RequestDenied).Inc()
	slog.Info("access request denied", "request", req.ID, "user", req.UserID, "garment", req.GarmentName)

	s.announce(ctx, req.UserID)
	return s.Snapshot(ctx)
}

func (s *Service) announce(ctx context.Context, userID string) {
	if s.Feed == nil {
		return
	}
	if err := feed.Publish(ctx, s.Feed, userID, feed.TableRequests, feed.TableNotifications); err != nil {
		slog.Warn("publishing request change", "user", userID, "error", err)
	}
}

// suggest fills SuggestedCode on pending requests from the catalog.
func suggest(requests []model.AccessRequest, garments []model.Garment) {
	for i := range requests {
		if requests[i].Status != model.RequestPending {
			continue
		}
		for _, g := range garments {
			if model.SameGarmentName(g.Name, requests[i].GarmentName) {
				requests[i].SuggestedCode = g.SecurityCode
				break
			}
		}
	}
}
