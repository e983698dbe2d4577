// Package session owns accounts and sign-in: sign-up with an emailed
// one-time code, password sign-in issuing JWT sessions, sign-out through
// token revocation, and a stream of session events.
package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/garderoba/internal/auth"
	"github.com/erazemk/garderoba/internal/mailer"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotConfirmed       = errors.New("confirm your email before signing in")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrUsernameRequired   = errors.New("username is required")
	ErrInvalidCode        = errors.New("invalid or expired verification code")
	ErrResendTooSoon      = errors.New("a new code was sent recently")
	ErrRevoked            = errors.New("session has been signed out")
)

// Defaults for one-time codes.
const (
	DefaultCodeTTL        = 10 * time.Minute
	DefaultResendCooldown = 120 * time.Second
)

// EventKind says what happened to a session.
type EventKind string

// Session events.
const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

// Session is a signed-in user.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *model.User  `json:"user"`
	Claims    *auth.Claims `json:"-"`
}

// Event is delivered to subscribers. Session is nil on sign-out.
type Event struct {
	Kind    EventKind `json:"kind"`
	Email   string    `json:"email"`
	Session *Session  `json:"session,omitempty"`
}

// Service is the session store.
type Service struct {
	DB     *sql.DB
	Secret string
	Mailer mailer.Mailer

	CodeTTL        time.Duration
	ResendCooldown time.Duration
	// Cost is the bcrypt cost for passwords and codes.
	Cost int
	Now  func() time.Time

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// New returns a Service with default code timings.
func New(db *sql.DB, secret string, m mailer.Mailer) *Service {
	return &Service{
		DB:             db,
		Secret:         secret,
		Mailer:         m,
		CodeTTL:        DefaultCodeTTL,
		ResendCooldown: DefaultResendCooldown,
		Cost:           bcrypt.DefaultCost,
		Now:            time.Now,
	}
}

// SignUp creates an unconfirmed account and emails it a one-time code.
// Signing up again before confirming replaces the password and sends a new
// code.
func (s *Service) SignUp(ctx context.Context, email, password, username string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if err := model.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := model.ValidatePassword(password); err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := store.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		return nil, err
	}
	switch {
	case user != nil && user.DeletedAt == nil && user.Confirmed():
		return nil, ErrEmailTaken
	case user != nil && user.DeletedAt == nil:
		if err := store.UpdateUserPassword(ctx, s.DB, user.ID, string(hash)); err != nil {
			return nil, err
		}
		if err := store.UpdateProfile(ctx, s.DB, user.ID, username, user.Bio); err != nil {
			return nil, err
		}
	default:
		user, err = store.CreateUser(ctx, s.DB, email, username, string(hash), model.RoleUser)
		if err != nil {
			return nil, err
		}
	}

	if err := s.issueCode(ctx, email, model.PurposeSignup); err != nil {
		return nil, err
	}
	slog.Info("user signed up", "email", email)
	return store.GetUser(ctx, s.DB, user.ID)
}

// VerifyCode checks a one-time code and confirms the account. It does not
// sign the user in.
func (s *Service) VerifyCode(ctx context.Context, email, code, purpose string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if model.ValidateSecurityCode(code) != nil {
		return nil, ErrInvalidCode
	}

	vc, err := store.GetVerificationCode(ctx, s.DB, email, purpose)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if vc == nil || vc.UsedAt != nil || now.After(vc.ExpiresAt) {
		return nil, ErrInvalidCode
	}
	if bcrypt.CompareHashAndPassword([]byte(vc.CodeHash), []byte(code)) != nil {
		return nil, ErrInvalidCode
	}

	user, err := store.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.DeletedAt != nil {
		return nil, ErrInvalidCode
	}

	if err := store.MarkCodeUsed(ctx, s.DB, email, purpose, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	if err := store.ConfirmUser(ctx, s.DB, user.ID, now); err != nil {
		return nil, err
	}

	slog.Info("email confirmed", "email", email)
	return store.GetUser(ctx, s.DB, user.ID)
}

// ResendCode sends a new one-time code, at most once per cooldown. Emails
// without a pending sign-up are ignored.
func (s *Service) ResendCode(ctx context.Context, email, purpose string) error {
	email = model.NormalizeEmail(email)

	vc, err := store.GetVerificationCode(ctx, s.DB, email, purpose)
	if err != nil {
		return err
	}
	if vc != nil {
		if wait := s.ResendCooldown - s.now().Sub(vc.CreatedAt); wait > 0 {
			return fmt.Errorf("%w: try again in %ds", ErrResendTooSoon, int(wait.Round(time.Second).Seconds()))
		}
	}

	user, err := store.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		return err
	}
	if user == nil || user.DeletedAt != nil || user.Confirmed() {
		return nil
	}
	return s.issueCode(ctx, email, purpose)
}

// SignIn checks a password and starts a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := store.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.DeletedAt != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("sign-in failed", "email", email)
		return nil, ErrInvalidCredentials
	}
	if !user.Confirmed() {
		return nil, ErrNotConfirmed
	}

	token, claims, err := auth.GenerateToken(s.Secret, user)
	if err != nil {
		return nil, err
	}

	sess := &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user, Claims: claims}
	slog.Info("user signed in", "email", email, "role", user.Role)
	s.broadcast(Event{Kind: SignedIn, Email: email, Session: sess})
	return sess, nil
}

// SignOut revokes the session's token.
func (s *Service) SignOut(ctx context.Context, claims *auth.Claims) error {
	expiresAt := s.now().Add(auth.TokenExpiry)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(ctx, s.DB, claims.ID, expiresAt); err != nil {
		return err
	}

	slog.Info("user signed out", "email", claims.Email)
	s.broadcast(Event{Kind: SignedOut, Email: claims.Email})
	return nil
}

// Authenticate validates a bearer token and checks that it was not signed
// out and that its user still exists.
func (s *Service) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := auth.ValidateToken(s.Secret, token)
	if err != nil {
		return nil, err
	}

	revoked, err := store.IsTokenRevoked(ctx, s.DB, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}

	user, err := store.GetUser(ctx, s.DB, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.DeletedAt != nil {
		return nil, ErrInvalidCredentials
	}
	// Roles can change while a token is alive.
	claims.Role = user.Role
	return claims, nil
}

// ChangePassword replaces a user's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if err := model.ValidatePassword(next); err != nil {
		return err
	}

	user, err := store.GetUser(ctx, s.DB, userID)
	if err != nil {
		return err
	}
	if user == nil || user.DeletedAt != nil {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost())
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return store.UpdateUserPassword(ctx, s.DB, userID, string(hash))
}

// Subscribe delivers session events until ctx ends or cancel is called.
// Slow subscribers miss events.
func (s *Service) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ch := make(chan Event, 8)

	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]chan Event)
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return ch, func() {
		stop()
		cancel()
	}
}

func (s *Service) broadcast(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Service) issueCode(ctx context.Context, email, purpose string) error {
	code, err := newCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost())
	if err != nil {
		return fmt.Errorf("hashing code: %w", err)
	}

	now := s.now()
	ttl := s.CodeTTL
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	if err := store.PutVerificationCode(ctx, s.DB, email, purpose, string(hash), now, now.Add(ttl)); err != nil {
		return err
	}

	if s.Mailer == nil {
		return fmt.Errorf("no mailer configured")
	}
	return s.Mailer.Send(ctx, mailer.CodeMessage(email, code))
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) cost() int {
	if s.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return s.Cost
}

// newCode returns six random digits.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
