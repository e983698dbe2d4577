package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/garderoba/internal/feed"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

// NotificationsHandler handles the caller's notifications.
type NotificationsHandler struct {
	DB   *sql.DB
	Feed feed.Publisher
}

// List handles GET /api/notifications.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	notifications, err := store.ListNotifications(r.Context(), h.DB, GetClaims(r.Context()).Email)
	if err != nil {
		storeError(w, err, "notifications")
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	jsonResponse(w, http.StatusOK, notifications)
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	owner := GetClaims(r.Context()).Email
	if err := store.MarkNotificationRead(r.Context(), h.DB, owner, r.PathValue("id")); err != nil {
		storeError(w, err, "notification")
		return
	}

	publish(r, h.Feed, owner, feed.TableNotifications)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "notification read"})
}

// Clear handles DELETE /api/notifications.
func (h *NotificationsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	owner := GetClaims(r.Context()).Email
	if err := store.ClearNotifications(r.Context(), h.DB, owner); err != nil {
		storeError(w, err, "notifications")
		return
	}

	publish(r, h.Feed, owner, feed.TableNotifications)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "notifications cleared"})
}
