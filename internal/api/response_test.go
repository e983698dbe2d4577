package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

func TestWriteReloaded(t *testing.T) {
	tests := []struct {
		name   string
		user   *model.User
		err    error
		status int
	}{
		{"found", &model.User{ID: 1, Email: "ana@example.com"}, nil, http.StatusOK},
		{"vanished", nil, nil, http.StatusNotFound},
		{"read failed", nil, errors.New("database is locked"), http.StatusInternalServerError},
		{"not found error", nil, store.ErrNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeReloaded(rec, http.StatusOK, tt.user, tt.err, "profile")

			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if rec.Body.String() == "null\n" {
				t.Error("a reload must never answer with a null body")
			}
			if tt.user == nil {
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] == "" {
					t.Errorf("expected an error body, got %q", rec.Body.String())
				}
			}
		})
	}
}
