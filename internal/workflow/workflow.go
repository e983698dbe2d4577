// Package workflow runs the ownership verification flow: a simulated scan picks
// a catalog garment, the user proves ownership with its six-digit code, and
// a verified copy lands in their wardrobe. Users without the code can ask an
// administrator for it and come back later; the in-progress scan is mirrored
// to device-local state so it survives reloads.
package workflow

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/erazemk/garderoba/internal/feed"
	"github.com/erazemk/garderoba/internal/localstate"
	"github.com/erazemk/garderoba/internal/metrics"
	"github.com/erazemk/garderoba/internal/mirror"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

// State is where a user's scan session stands.
type State string

// Scan states.
const (
	Idle           State = "idle"
	Searching      State = "searching"
	Found          State = "found"
	AwaitingCode   State = "awaiting_code"
	RequestPending State = "request_pending"
	Verifying      State = "verifying"
	Resolved       State = "resolved"
)

var (
	ErrNotFound           = errors.New("no garment found in the catalog")
	ErrVaultInaccessible  = errors.New("vault inaccessible")
	ErrCodeMismatch       = errors.New("invalid security PIN")
	ErrVerificationFailed = errors.New("garment could not be verified")
	ErrInvalidTransition  = errors.New("not allowed in the current scan state")
)

// DefaultMinScanDuration is how long a fresh scan appears to search.
const DefaultMinScanDuration = 1200 * time.Millisecond

// Actor identifies who is scanning and from which device.
type Actor struct {
	Device string
	Email  string
	Name   string
}

// Snapshot is the externally visible scan session.
type Snapshot struct {
	State         State               `json:"state"`
	Garment       *model.Garment      `json:"garment,omitempty"`
	RequestSent   bool                `json:"request_sent"`
	ShowCodeInput bool                `json:"show_code_input"`
	Item          *model.WardrobeItem `json:"item,omitempty"`
}

// Status is what a change-feed refresh reports.
type Status struct {
	Unread        int                  `json:"unread"`
	LatestRequest *model.AccessRequest `json:"latest_request,omitempty"`
}

type session struct {
	state         State
	garment       model.Garment
	requestSent   bool
	showCodeInput bool
}

// Workflow holds every user's transient scan session.
type Workflow struct {
	DB      *sql.DB
	Devices localstate.Devices
	Feed    feed.Publisher

	// Picker returns an index in [0, n) for the fresh-scan pick.
	Picker func(n int) int
	// MinScanDuration is the minimum time a fresh scan spends searching.
	MinScanDuration time.Duration
	// Sleep waits for d or until ctx ends.
	Sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	sessions map[string]*session
	locks    map[string]*userLock
}

// New returns a Workflow with the default picker and scan duration.
func New(db *sql.DB, devices localstate.Devices, pub feed.Publisher) *Workflow {
	return &Workflow{
		DB:              db,
		Devices:         devices,
		Feed:            pub,
		Picker:          rand.IntN,
		MinScanDuration: DefaultMinScanDuration,
		Sleep:           sleepContext,
		sessions:        make(map[string]*session),
		locks:           make(map[string]*userLock),
	}
}

// StartScan restores an interrupted scan if there is one, and otherwise picks
// a garment from the catalog.
func (w *Workflow) StartScan(ctx context.Context, a Actor) (*Snapshot, error) {
	defer w.lock(a)()
	m := w.mirror(a)

	st, err := m.Load(ctx, a.Email)
	if err != nil {
		return w.fail(a, "start scan", err)
	}
	if st != nil {
		s := fromMirror(st)
		w.put(a, s)
		metrics.Scans.WithLabelValues("restored").Inc()
		return s.snapshot(), nil
	}

	s, err := w.reconstruct(ctx, a)
	if err != nil {
		return w.fail(a, "reconstruct scan", err)
	}
	if s != nil {
		if err := m.Save(ctx, a.Email, s.mirrorState()); err != nil {
			return w.fail(a, "save scan", err)
		}
		w.put(a, s)
		metrics.Scans.WithLabelValues("reconstructed").Inc()
		return s.snapshot(), nil
	}

	w.put(a, &session{state: Searching})
	if err := w.Sleep(ctx, w.MinScanDuration); err != nil {
		w.drop(a)
		return idle(), err
	}

	garments, err := store.ListGarments(ctx, w.DB)
	if err != nil {
		return w.fail(a, "list catalog", err)
	}
	if len(garments) == 0 {
		w.drop(a)
		metrics.Scans.WithLabelValues("not_found").Inc()
		return idle(), ErrNotFound
	}

	g := garments[w.Picker(len(garments))]
	s = &session{state: Found, garment: g.Public()}
	if err := m.Save(ctx, a.Email, s.mirrorState()); err != nil {
		return w.fail(a, "save scan", err)
	}
	w.put(a, s)
	metrics.Scans.WithLabelValues("found").Inc()
	return s.snapshot(), nil
}

// reconstruct rebuilds a pending scan from the user's newest open request
// when the local mirror is gone. Requests already fulfilled by a later
// verification are ignored.
func (w *Workflow) reconstruct(ctx context.Context, a Actor) (*session, error) {
	req, err := store.LatestActiveRequest(ctx, w.DB, a.Email)
	if err != nil || req == nil {
		return nil, err
	}

	g, err := store.GetGarmentByName(ctx, w.DB, req.GarmentName)
	if err != nil || g == nil {
		return nil, err
	}

	done, err := store.HasVerifiedSince(ctx, w.DB, a.Email, g.Name, req.CreatedAt)
	if err != nil || done {
		return nil, err
	}

	return &session{
		state:         RequestPending,
		garment:       g.Public(),
		requestSent:   true,
		showCodeInput: true,
	}, nil
}

// Proceed opens the code entry for the found garment.
func (w *Workflow) Proceed(ctx context.Context, a Actor) (*Snapshot, error) {
	defer w.lock(a)()

	s, err := w.current(ctx, a)
	if err != nil {
		return w.fail(a, "proceed", err)
	}
	if s.state != Found && s.state != AwaitingCode {
		return s.snapshot(), ErrInvalidTransition
	}

	s.state = AwaitingCode
	s.showCodeInput = true
	return w.persist(ctx, a, s)
}

// RequestCode asks an administrator for the garment's code.
func (w *Workflow) RequestCode(ctx context.Context, a Actor) (*Snapshot, error) {
	defer w.lock(a)()

	s, err := w.current(ctx, a)
	if err != nil {
		return w.fail(a, "request code", err)
	}
	if s.state != Found && s.state != AwaitingCode {
		return s.snapshot(), ErrInvalidTransition
	}

	req, err := store.CreateRequest(ctx, w.DB, a.Email, a.Name, s.garment.Name, s.garment.Brand)
	if err != nil {
		slog.Error("creating access request", "user", a.Email, "error", err)
		return s.snapshot(), ErrVaultInaccessible
	}
	metrics.AccessRequests.WithLabelValues(model.RequestPending).Inc()
	slog.Info("access code requested", "user", a.Email, "garment", s.garment.Name, "request", req.ID)

	s.state = RequestPending
	s.requestSent = true
	s.showCodeInput = true
	snap, err := w.persist(ctx, a, s)
	if err != nil {
		return snap, err
	}

	w.publish(ctx, a.Email, feed.TableRequests)
	w.publish(ctx, a.Email, feed.TableNotifications)
	return snap, nil
}

// ResetRequest lets the user ask for a code again.
func (w *Workflow) ResetRequest(ctx context.Context, a Actor) (*Snapshot, error) {
	defer w.lock(a)()

	s, err := w.current(ctx, a)
	if err != nil {
		return w.fail(a, "reset request", err)
	}
	if s.state != RequestPending {
		return s.snapshot(), ErrInvalidTransition
	}

	s.state = AwaitingCode
	s.requestSent = false
	return w.persist(ctx, a, s)
}

// SubmitCode checks code against the catalog. A match adds the garment to
// the wardrobe and ends the scan; anything else leaves the session and its
// mirror as they were.
func (w *Workflow) SubmitCode(ctx context.Context, a Actor, code string) (*Snapshot, error) {
	defer w.lock(a)()

	s, err := w.current(ctx, a)
	if err != nil {
		return w.fail(a, "submit code", err)
	}
	if s.state != AwaitingCode && s.state != RequestPending {
		return s.snapshot(), ErrInvalidTransition
	}
	if err := model.ValidateSecurityCode(code); err != nil {
		return s.snapshot(), err
	}

	prev := s.state
	s.state = Verifying

	g, err := store.GetGarment(ctx, w.DB, s.garment.ID)
	if err != nil {
		slog.Error("fetching garment for verification", "garment", s.garment.ID, "error", err)
		s.state = prev
		return s.snapshot(), ErrVaultInaccessible
	}
	if g == nil {
		metrics.Verifications.WithLabelValues("missing").Inc()
		s.state = prev
		return s.snapshot(), ErrVerificationFailed
	}
	if g.SecurityCode != code {
		metrics.Verifications.WithLabelValues("mismatch").Inc()
		s.state = prev
		return s.snapshot(), ErrCodeMismatch
	}

	item, err := store.LinkVerifiedGarment(ctx, w.DB, a.Email, g)
	if err != nil {
		slog.Error("linking verified garment", "user", a.Email, "garment", g.ID, "error", err)
		s.state = prev
		return s.snapshot(), ErrVaultInaccessible
	}

	if err := w.mirror(a).Clear(ctx, a.Email); err != nil {
		slog.Error("clearing scan mirror", "user", a.Email, "error", err)
	}
	w.drop(a)
	s.state = Resolved

	metrics.Verifications.WithLabelValues("matched").Inc()
	slog.Info("garment verified", "user", a.Email, "garment", g.Name, "item", item.ID)
	w.publish(ctx, a.Email, feed.TableWardrobe)
	w.publish(ctx, a.Email, feed.TableRequests)

	public := g.Public()
	return &Snapshot{State: Resolved, Garment: &public, Item: item}, nil
}

// Cancel closes the scan overlay. The mirror is left alone, so the next scan
// comes back to the same garment; only a successful verification clears it.
func (w *Workflow) Cancel(ctx context.Context, a Actor) (*Snapshot, error) {
	defer w.lock(a)()

	w.drop(a)
	return idle(), nil
}

// Current returns the user's scan session, falling back to the mirror when
// nothing is held in memory.
func (w *Workflow) Current(ctx context.Context, a Actor) (*Snapshot, error) {
	defer w.lock(a)()

	s, err := w.current(ctx, a)
	if err != nil {
		return w.fail(a, "current", err)
	}
	return s.snapshot(), nil
}

// Refresh re-reads what the change feed may have moved. It never changes
// the scan session.
func (w *Workflow) Refresh(ctx context.Context, a Actor) (*Status, error) {
	unread, err := store.CountUnread(ctx, w.DB, a.Email)
	if err != nil {
		return nil, err
	}
	req, err := store.LatestRequest(ctx, w.DB, a.Email)
	if err != nil {
		return nil, err
	}
	return &Status{Unread: unread, LatestRequest: req}, nil
}

func (w *Workflow) current(ctx context.Context, a Actor) (*session, error) {
	w.mu.Lock()
	s, ok := w.sessions[sessionKey(a)]
	w.mu.Unlock()
	if ok {
		return s, nil
	}

	st, err := w.mirror(a).Load(ctx, a.Email)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return &session{state: Idle}, nil
	}
	s = fromMirror(st)
	w.put(a, s)
	return s, nil
}

func (w *Workflow) persist(ctx context.Context, a Actor, s *session) (*Snapshot, error) {
	if err := w.mirror(a).Save(ctx, a.Email, s.mirrorState()); err != nil {
		return w.fail(a, "save scan", err)
	}
	w.put(a, s)
	return s.snapshot(), nil
}

// fail logs a store or local state error and drops back to Idle.
func (w *Workflow) fail(a Actor, op string, err error) (*Snapshot, error) {
	slog.Error("scan workflow", "op", op, "user", a.Email, "error", err)
	metrics.Scans.WithLabelValues("error").Inc()
	w.drop(a)
	return idle(), ErrVaultInaccessible
}

func (w *Workflow) publish(ctx context.Context, userID, table string) {
	if w.Feed == nil {
		return
	}
	if err := w.Feed.Publish(ctx, feed.Change{Table: table, UserID: model.NormalizeEmail(userID)}); err != nil {
		slog.Warn("publishing change", "table", table, "error", err)
	}
}

func (w *Workflow) mirror(a Actor) *mirror.Store {
	return mirror.New(w.Devices.Device(a.Device))
}

// userLock serialises one user's operations. refs counts holders and
// waiters so the entry can be dropped once nobody needs it.
type userLock struct {
	sync.Mutex
	refs int
}

// lock serialises one user's operations and returns the unlock func.
func (w *Workflow) lock(a Actor) func() {
	key := model.NormalizeEmail(a.Email)
	w.mu.Lock()
	if w.locks == nil {
		w.locks = make(map[string]*userLock)
	}
	l, ok := w.locks[key]
	if !ok {
		l = &userLock{}
		w.locks[key] = l
	}
	l.refs++
	w.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		w.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(w.locks, key)
		}
		w.mu.Unlock()
	}
}

func (w *Workflow) put(a Actor, s *session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sessions == nil {
		w.sessions = make(map[string]*session)
	}
	w.sessions[sessionKey(a)] = s
}

func (w *Workflow) drop(a Actor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sessions, sessionKey(a))
}

func sessionKey(a Actor) string {
	return localstate.DeviceID(a.Device) + "|" + model.NormalizeEmail(a.Email)
}

func fromMirror(st *mirror.State) *session {
	s := &session{
		state:         Found,
		garment:       st.Garment,
		requestSent:   st.RequestSent,
		showCodeInput: st.ShowCodeInput || st.RequestSent,
	}
	switch {
	case s.requestSent:
		s.state = RequestPending
	case s.showCodeInput:
		s.state = AwaitingCode
	}
	return s
}

func (s *session) mirrorState() mirror.State {
	return mirror.State{
		Garment:       s.garment,
		RequestSent:   s.requestSent,
		ShowCodeInput: s.showCodeInput,
	}
}

func (s *session) snapshot() *Snapshot {
	snap := &Snapshot{
		State:         s.state,
		RequestSent:   s.requestSent,
		ShowCodeInput: s.showCodeInput,
	}
	if s.garment.ID != 0 {
		g := s.garment.Public()
		snap.Garment = &g
	}
	return snap
}

func idle() *Snapshot {
	return &Snapshot{State: Idle}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
