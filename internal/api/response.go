package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/garderoba/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// storeError maps a store failure to a response. Unexpected errors are
// logged and reported generically.
func storeError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, store.ErrLocked):
		jsonError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotPending):
		jsonError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("store operation failed", "what", what, "error", err)
		jsonError(w, http.StatusInternalServerError, "System Error")
	}
}

// writeReloaded writes a record re-read after a mutation. A failed read maps
// through storeError and a vanished record is a 404.
func writeReloaded[T any](w http.ResponseWriter, status int, v *T, err error, what string) {
	if err != nil {
		storeError(w, err, what)
		return
	}
	if v == nil {
		jsonError(w, http.StatusNotFound, what+" not found")
		return
	}
	jsonResponse(w, status, v)
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the {id} path value as an integer key.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// writeImage serves stored image bytes.
func writeImage(w http.ResponseWriter, data []byte, mime string) {
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}
