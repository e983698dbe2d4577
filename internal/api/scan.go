package api

import (
	"errors"
	"net/http"

	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/workflow"
)

// ScanHandler drives the ownership verification flow for the caller.
type ScanHandler struct {
	Workflow *workflow.Workflow
}

type submitCodeRequest struct {
	Code string `json:"code"`
}

// scanResponse carries the session even when an operation is refused, so
// clients can keep rendering it.
type scanResponse struct {
	*workflow.Snapshot
	Error string `json:"error,omitempty"`
}

// Start handles POST /api/scan.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Workflow.StartScan(r.Context(), actor(r))
	scanResult(w, snap, err)
}

// Current handles GET /api/scan.
func (h *ScanHandler) Current(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Workflow.Current(r.Context(), actor(r))
	scanResult(w, snap, err)
}

// Proceed handles POST /api/scan/proceed.
func (h *ScanHandler) Proceed(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Workflow.Proceed(r.Context(), actor(r))
	scanResult(w, snap, err)
}

// RequestCode handles POST /api/scan/request.
func (h *ScanHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Workflow.RequestCode(r.Context(), actor(r))
	scanResult(w, snap, err)
}

// ResetRequest handles POST /api/scan/reset.
func (h *ScanHandler) ResetRequest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Workflow.ResetRequest(r.Context(), actor(r))
	scanResult(w, snap, err)
}

// SubmitCode handles POST /api/scan/code.
func (h *ScanHandler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	var req submitCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.Workflow.SubmitCode(r.Context(), actor(r), req.Code)
	scanResult(w, snap, err)
}

// Cancel handles DELETE /api/scan.
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Workflow.Cancel(r.Context(), actor(r))
	scanResult(w, snap, err)
}

func scanResult(w http.ResponseWriter, snap *workflow.Snapshot, err error) {
	if err == nil {
		jsonResponse(w, http.StatusOK, scanResponse{Snapshot: snap})
		return
	}

	status := http.StatusInternalServerError
	msg := "Vault inaccessible"
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		status, msg = http.StatusNotFound, "No garment found in the catalog"
	case errors.Is(err, workflow.ErrCodeMismatch):
		status, msg = http.StatusBadRequest, "Invalid Security PIN."
	case errors.Is(err, model.ErrInvalidCode):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, workflow.ErrVerificationFailed):
		status, msg = http.StatusNotFound, "Verification failed."
	case errors.Is(err, workflow.ErrInvalidTransition):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, workflow.ErrVaultInaccessible):
	default:
		// Context cancellation during the scan delay.
		status, msg = http.StatusRequestTimeout, "scan interrupted"
	}
	jsonResponse(w, status, scanResponse{Snapshot: snap, Error: msg})
}
