package model

import "time"

// AccessRequest is a user's ask for the code of a catalog garment.
type AccessRequest struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name"`
	GarmentName  string    `json:"garment_name"`
	Brand        string    `json:"brand"`
	Status       string    `json:"status"`
	ResolvedCode string    `json:"resolved_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	// Admin-only hint, not stored.
	SuggestedCode string `json:"suggested_code,omitempty"`
}

// Request statuses.
const (
	RequestPending  = "pending"
	RequestResolved = "resolved"
	RequestDenied   = "denied"
)

// Notification is a message delivered to a single user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification kinds.
const (
	NotifyRequestSent   = "request_sent"
	NotifyCodeReceived  = "code_received"
	NotifyRequestDenied = "request_denied"
)

// Outfit is a styling suggestion saved by a user.
type Outfit struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Advice      string    `json:"advice"`
	Combination []string  `json:"combination"`
	Occasion    string    `json:"occasion,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// VerificationCode is a hashed one-time code sent during sign-up.
type VerificationCode struct {
	Email     string     `json:"email"`
	Purpose   string     `json:"purpose"`
	CodeHash  string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// Verification code purposes.
const (
	PurposeSignup = "signup"
)
