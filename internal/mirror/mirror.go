// Package mirror persists a user's in-progress scan in device-local state so
// it can be restored after a reload.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/erazemk/garderoba/internal/localstate"
	"github.com/erazemk/garderoba/internal/model"
)

// KeyPrefix starts every mirror key. Sign-out keeps keys with this prefix.
const KeyPrefix = "pending_scan_"

// Key returns the local state key for a user's mirror.
func Key(email string) string {
	return KeyPrefix + model.NormalizeEmail(email)
}

// State is the persisted part of a scan session. RequestSent implies
// ShowCodeInput.
type State struct {
	Garment       model.Garment `json:"garment"`
	RequestSent   bool          `json:"requestSent,omitempty"`
	ShowCodeInput bool          `json:"showCodeInput,omitempty"`
}

// Store reads and writes mirrors in one device's local state.
type Store struct {
	local localstate.Store
}

// New returns a Store backed by local.
func New(local localstate.Store) *Store {
	return &Store{local: local}
}

// Load returns the user's mirror, or nil if there is none. A corrupt mirror
// is deleted and reported as absent.
func (s *Store) Load(ctx context.Context, email string) (*State, error) {
	key := Key(email)
	raw, ok, err := s.local.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading mirror: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil || st.Garment.ID == 0 {
		slog.Warn("discarding corrupt scan mirror", "key", key, "error", err)
		if err := s.local.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("deleting corrupt mirror: %w", err)
		}
		return nil, nil
	}
	if st.RequestSent {
		st.ShowCodeInput = true
	}
	return &st, nil
}

// Save writes the user's mirror. The garment's security code is never stored.
func (s *Store) Save(ctx context.Context, email string, st State) error {
	st.Garment = st.Garment.Public()
	if st.RequestSent {
		st.ShowCodeInput = true
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding mirror: %w", err)
	}
	if err := s.local.Set(ctx, Key(email), string(raw)); err != nil {
		return fmt.Errorf("writing mirror: %w", err)
	}
	return nil
}

// Clear removes the user's mirror.
func (s *Store) Clear(ctx context.Context, email string) error {
	if err := s.local.Delete(ctx, Key(email)); err != nil {
		return fmt.Errorf("clearing mirror: %w", err)
	}
	return nil
}
