package session

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/mailer"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (o *outbox) Send(_ context.Context, m mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return nil
}

var codeInMail = regexp.MustCompile(`\b[0-9]{6}\b`)

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent, "no mail sent")
	code := codeInMail.FindString(o.sent[len(o.sent)-1].Text)
	require.NotEmpty(t, code)
	return code
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func setup(t *testing.T) (*Service, *outbox, *clock) {
	t.Helper()
	box := &outbox{}
	c := &clock{now: time.Date(2026, time.January, 15, 9, 0, 0, 0, time.UTC)}
	svc := New(db.NewTestDB(t), "test-secret", box)
	svc.Cost = bcrypt.MinCost
	svc.Now = c.Now
	return svc, box, c
}

func signUpAndConfirm(t *testing.T, svc *Service, box *outbox, email string) *model.User {
	t.Helper()
	ctx := context.Background()
	_, err := svc.SignUp(ctx, email, "secret1", "Ana")
	require.NoError(t, err)
	user, err := svc.VerifyCode(ctx, email, box.lastCode(t), model.PurposeSignup)
	require.NoError(t, err)
	return user
}

func TestSignUpValidation(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "not-an-email", "secret1", "Ana")
	assert.ErrorIs(t, err, model.ErrInvalidEmail)

	_, err = svc.SignUp(ctx, "ana@example.com", "12345", "Ana")
	assert.Error(t, err)

	_, err = svc.SignUp(ctx, "ana@example.com", "secret1", "  ")
	assert.ErrorIs(t, err, ErrUsernameRequired)
}

func TestSignUpVerifyAndSignIn(t *testing.T) {
	svc, box, _ := setup(t)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "Ana@Example.com", "secret1", "Ana")
	require.NoError(t, err)
	assert.False(t, user.Confirmed())

	_, err = svc.SignIn(ctx, "ana@example.com", "secret1")
	assert.ErrorIs(t, err, ErrNotConfirmed)

	wrong := "000000"
	if box.lastCode(t) == wrong {
		wrong = "111111"
	}
	_, err = svc.VerifyCode(ctx, "ana@example.com", wrong, model.PurposeSignup)
	assert.ErrorIs(t, err, ErrInvalidCode)

	confirmed, err := svc.VerifyCode(ctx, "ana@example.com", box.lastCode(t), model.PurposeSignup)
	require.NoError(t, err)
	assert.True(t, confirmed.Confirmed())
	assert.Equal(t, "Jan 2026", confirmed.MemberSince)
	assert.Equal(t, model.DefaultAvatarURL, confirmed.AvatarURL)

	// Codes are single-use.
	_, err = svc.VerifyCode(ctx, "ana@example.com", box.lastCode(t), model.PurposeSignup)
	assert.ErrorIs(t, err, ErrInvalidCode)

	sess, err := svc.SignIn(ctx, "ANA@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "ana@example.com", sess.Claims.Email)

	_, err = svc.SignUp(ctx, "ana@example.com", "secret2", "Ana")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestExpiredCodeRejected(t *testing.T) {
	svc, box, c := setup(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)

	c.now = c.now.Add(DefaultCodeTTL + time.Second)
	_, err = svc.VerifyCode(ctx, "ana@example.com", box.lastCode(t), model.PurposeSignup)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestResendCooldown(t *testing.T) {
	svc, box, c := setup(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)

	c.now = c.now.Add(30 * time.Second)
	err = svc.ResendCode(ctx, "ana@example.com", model.PurposeSignup)
	assert.ErrorIs(t, err, ErrResendTooSoon)
	assert.Len(t, box.sent, 1)

	c.now = c.now.Add(DefaultResendCooldown)
	require.NoError(t, svc.ResendCode(ctx, "ana@example.com", model.PurposeSignup))
	assert.Len(t, box.sent, 2)

	// The newest code is the one that works.
	_, err = svc.VerifyCode(ctx, "ana@example.com", box.lastCode(t), model.PurposeSignup)
	require.NoError(t, err)
}

func TestResendIgnoresUnknownEmail(t *testing.T) {
	svc, box, _ := setup(t)

	require.NoError(t, svc.ResendCode(context.Background(), "ghost@example.com", model.PurposeSignup))
	assert.Empty(t, box.sent)
}

func TestSignInWrongPassword(t *testing.T) {
	svc, box, _ := setup(t)
	signUpAndConfirm(t, svc, box, "ana@example.com")

	_, err := svc.SignIn(context.Background(), "ana@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(context.Background(), "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignOutRevokesAndNotifies(t *testing.T) {
	svc, box, _ := setup(t)
	ctx := context.Background()
	signUpAndConfirm(t, svc, box, "ana@example.com")

	events, cancel := svc.Subscribe(ctx)
	defer cancel()

	sess, err := svc.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	in := <-events
	assert.Equal(t, SignedIn, in.Kind)
	require.NotNil(t, in.Session)

	claims, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, claims))
	out := <-events
	assert.Equal(t, SignedOut, out.Kind)
	assert.Nil(t, out.Session)

	_, err = svc.Authenticate(ctx, sess.Token)
	assert.True(t, errors.Is(err, ErrRevoked))
}

func TestAuthenticateRejectsDeletedUser(t *testing.T) {
	svc, box, _ := setup(t)
	ctx := context.Background()
	user := signUpAndConfirm(t, svc, box, "ana@example.com")

	sess, err := svc.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, store.DeleteUser(ctx, svc.DB, user.ID))

	_, err = svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	svc, box, _ := setup(t)
	ctx := context.Background()
	user := signUpAndConfirm(t, svc, box, "ana@example.com")

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "wrong", "secret2"), ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "secret1", "secret2"))

	_, err := svc.SignIn(ctx, "ana@example.com", "secret2")
	assert.NoError(t, err)
}
