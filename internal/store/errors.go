package store

import "errors"

var (
	// ErrNotFound is returned by mutations that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrLocked is returned when removing a wardrobe item that is part of the
	// permanent record.
	ErrLocked = errors.New("authenticated assets and manual archives are locked for permanent record")

	// ErrNotPending is returned when resolving or denying a request that has
	// already reached a terminal state.
	ErrNotPending = errors.New("request is no longer pending")
)
