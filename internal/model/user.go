package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// User represents an account together with its profile fields.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Bio          string     `json:"bio,omitempty"`
	AvatarMime   string     `json:"avatar_mime,omitempty"`
	AvatarURL    string     `json:"avatar_url"`
	MemberSince  string     `json:"member_since,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// DefaultUsername is shown when neither a profile nor the email yields a name.
const DefaultUsername = "Member"

// DefaultAvatarURL is shown until the user uploads a photo.
const DefaultAvatarURL = "https://images.unsplash.com/photo-1500648767791-00dcc994a43e?auto=format&fit=crop&q=80&w=200"

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin: 2,
		RoleUser:  1,
	}
	return levels[role] >= levels[minimum] && levels[minimum] > 0
}

// DisplayName returns the username, falling back to the email's local part.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if local, _, ok := strings.Cut(u.Email, "@"); ok && local != "" {
		return local
	}
	return DefaultUsername
}

// Confirmed reports whether the account finished its sign-up verification.
func (u *User) Confirmed() bool {
	return u.ConfirmedAt != nil
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*@([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}$`)

// ErrInvalidEmail is returned for malformed email addresses.
var ErrInvalidEmail = errors.New("enter a valid email")

// NormalizeEmail trims and lowercases an email so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email looks like a deliverable address.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(NormalizeEmail(email)) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be %d+ characters", MinPasswordLength)
	}
	return nil
}

// MemberSinceLabel formats t the way profiles display membership, e.g. "Jan 2026".
func MemberSinceLabel(t time.Time) string {
	return t.Format("Jan 2006")
}
