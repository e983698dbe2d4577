package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/erazemk/garderoba/internal/admin"
	"github.com/erazemk/garderoba/internal/feed"
	"github.com/erazemk/garderoba/internal/metrics"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/workflow"
)

// streamKeepAlive is how often an idle event stream sends a comment.
const streamKeepAlive = 25 * time.Second

// eventStream writes server-sent events. It is safe for concurrent use.
type eventStream struct {
	mu sync.Mutex
	w  http.ResponseWriter
	rc *http.ResponseController
}

func startStream(w http.ResponseWriter) (*eventStream, error) {
	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && err != http.ErrNotSupported {
		return nil, err
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, err
	}
	return &eventStream{w: w, rc: rc}, nil
}

func (s *eventStream) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *eventStream) comment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	return s.rc.Flush()
}

// EventsHandler streams refreshed state whenever the change feed moves.
type EventsHandler struct {
	Feed     feed.Feed
	Workflow *workflow.Workflow
	Admin    *admin.Service
}

// Stream handles GET /api/events. Users receive their unread count and
// latest request; administrators additionally receive the dashboard snapshot.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	isAdmin := model.RoleAtLeast(claims.Role, model.RoleAdmin)

	stream, err := startStream(w)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	metrics.FeedSubscribers.Inc()
	defer metrics.FeedSubscribers.Dec()

	filter := feed.Filter{UserID: claims.Email}
	if isAdmin {
		filter = feed.Filter{}
	}
	a := actor(r)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		t := time.NewTicker(streamKeepAlive)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := stream.comment("keep-alive"); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	err = feed.Watch(ctx, h.Feed, filter, func(ctx context.Context) error {
		status, err := h.Workflow.Refresh(ctx, a)
		if err != nil {
			return err
		}
		if err := stream.send("status", status); err != nil {
			return err
		}
		if !isAdmin || h.Admin == nil {
			return nil
		}
		snap, err := h.Admin.Snapshot(ctx)
		if err != nil {
			return err
		}
		return stream.send("dashboard", snap)
	})
	if err != nil && ctx.Err() == nil {
		slog.Warn("event stream ended", "email", claims.Email, "error", err)
	}
}
