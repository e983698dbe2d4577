// Package feed is the record store's change subscription. A Change only says
// that something in a table moved; subscribers re-query for the actual data.
package feed

import (
	"context"
	"sync"
	"time"
)

// Tables that publish changes.
const (
	TableGarments      = "garments"
	TableWardrobe      = "wardrobe"
	TableRequests      = "access_requests"
	TableNotifications = "notifications"
	TableOutfits       = "outfits"
)

// Change announces a write to a table. An empty UserID means the change
// concerns everyone.
type Change struct {
	Table  string    `json:"table"`
	UserID string    `json:"user_id,omitempty"`
	At     time.Time `json:"at"`
}

// Filter selects changes. Empty fields match anything.
type Filter struct {
	Tables []string
	UserID string
}

// Match reports whether c passes the filter.
func (f Filter) Match(c Change) bool {
	if f.UserID != "" && c.UserID != "" && c.UserID != f.UserID {
		return false
	}
	if len(f.Tables) == 0 {
		return true
	}
	for _, t := range f.Tables {
		if t == c.Table {
			return true
		}
	}
	return false
}

// Publisher announces changes.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Feed is a Publisher that can also be subscribed to.
type Feed interface {
	Publisher
	// Subscribe delivers matching changes until ctx ends or the returned
	// cancel func is called. Slow subscribers miss changes.
	Subscribe(ctx context.Context, f Filter) (<-chan Change, func(), error)
}

// subscriberBuffer is how many changes a subscriber may fall behind by.
const subscriberBuffer = 16

// Memory is an in-process Feed.
type Memory struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*memorySub
}

type memorySub struct {
	filter Filter
	ch     chan Change
}

// NewMemory returns an in-process Feed.
func NewMemory() *Memory {
	return &Memory{subs: make(map[int]*memorySub)}
}

func (m *Memory) Publish(_ context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subs {
		if !s.filter.Match(c) {
			continue
		}
		select {
		case s.ch <- c:
		default:
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, f Filter) (<-chan Change, func(), error) {
	s := &memorySub{filter: f, ch: make(chan Change, subscriberBuffer)}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = s
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(s.ch)
		})
	}
	stop := context.AfterFunc(ctx, cancel)

	return s.ch, func() {
		stop()
		cancel()
	}, nil
}

// Watch calls refresh once and then again after every matching change, until
// ctx ends or refresh fails.
func Watch(ctx context.Context, f Feed, filter Filter, refresh func(context.Context) error) error {
	changes, cancel, err := f.Subscribe(ctx, filter)
	if err != nil {
		return err
	}
	defer cancel()

	if err := refresh(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := refresh(ctx); err != nil {
				return err
			}
		}
	}
}

// Publish announces changes to several tables for one user, stopping at the
// first error.
func Publish(ctx context.Context, p Publisher, userID string, tables ...string) error {
	now := time.Now().UTC()
	for _, t := range tables {
		if err := p.Publish(ctx, Change{Table: t, UserID: userID, At: now}); err != nil {
			return err
		}
	}
	return nil
}
