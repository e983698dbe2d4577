package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/erazemk/garderoba/internal/admin"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

// RequestsHandler handles access requests: the administrator's review and
// the caller's own history.
type RequestsHandler struct {
	DB    *sql.DB
	Admin *admin.Service
}

type resolveRequest struct {
	Code string `json:"code"`
}

// List handles GET /api/requests.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Admin.ListRequests(r.Context())
	if err != nil {
		storeError(w, err, "requests")
		return
	}
	if requests == nil {
		requests = []model.AccessRequest{}
	}
	jsonResponse(w, http.StatusOK, requests)
}

// Dashboard handles GET /api/admin/dashboard.
func (h *RequestsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Admin.Snapshot(r.Context())
	if err != nil {
		storeError(w, err, "dashboard")
		return
	}
	jsonResponse(w, http.StatusOK, snap)
}

// Resolve handles POST /api/requests/{id}/resolve.
func (h *RequestsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.Admin.Resolve(r.Context(), r.PathValue("id"), req.Code)
	if errors.Is(err, model.ErrInvalidCode) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		storeError(w, err, "request")
		return
	}
	jsonResponse(w, http.StatusOK, snap)
}

// Deny handles POST /api/requests/{id}/deny.
func (h *RequestsHandler) Deny(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Admin.Deny(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err, "request")
		return
	}
	jsonResponse(w, http.StatusOK, snap)
}

// Mine handles GET /api/requests/mine.
func (h *RequestsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	requests, err := store.ListUserRequests(r.Context(), h.DB, GetClaims(r.Context()).Email)
	if err != nil {
		storeError(w, err, "requests")
		return
	}
	if requests == nil {
		requests = []model.AccessRequest{}
	}
	jsonResponse(w, http.StatusOK, requests)
}
