package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func eachFeed(t *testing.T, run func(t *testing.T, f Feed)) {
	t.Run("memory", func(t *testing.T) { run(t, NewMemory()) })
	t.Run("redis", func(t *testing.T) { run(t, NewRedis(setupRedis(t), "")) })
}

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func TestFilterMatch(t *testing.T) {
	f := Filter{Tables: []string{TableWardrobe}, UserID: "ana@example.com"}

	assert.True(t, f.Match(Change{Table: TableWardrobe, UserID: "ana@example.com"}))
	assert.True(t, f.Match(Change{Table: TableWardrobe}), "global changes reach everyone")
	assert.False(t, f.Match(Change{Table: TableWardrobe, UserID: "bob@example.com"}))
	assert.False(t, f.Match(Change{Table: TableOutfits, UserID: "ana@example.com"}))
	assert.True(t, Filter{}.Match(Change{Table: TableOutfits, UserID: "bob@example.com"}))
}

func TestSubscribeDeliversMatchingChanges(t *testing.T) {
	eachFeed(t, func(t *testing.T, f Feed) {
		ctx := context.Background()

		ch, cancel, err := f.Subscribe(ctx, Filter{UserID: "ana@example.com"})
		require.NoError(t, err)
		defer cancel()

		require.NoError(t, f.Publish(ctx, Change{Table: TableRequests, UserID: "bob@example.com"}))
		require.NoError(t, f.Publish(ctx, Change{Table: TableNotifications, UserID: "ana@example.com"}))

		c := receive(t, ch)
		assert.Equal(t, TableNotifications, c.Table)
		assert.False(t, c.At.IsZero())
	})
}

func TestCancelClosesChannel(t *testing.T) {
	eachFeed(t, func(t *testing.T, f Feed) {
		ctx, stop := context.WithCancel(context.Background())

		ch, cancel, err := f.Subscribe(ctx, Filter{})
		require.NoError(t, err)
		defer cancel()

		stop()
		select {
		case _, ok := <-ch:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("channel not closed after context cancel")
		}
	})
}

func TestMemoryPublishNeverBlocks(t *testing.T) {
	f := NewMemory()
	ctx := context.Background()

	_, cancel, err := f.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	defer cancel()

	// Nobody reads; publishing past the buffer must drop, not block.
	for i := 0; i < subscriberBuffer*4; i++ {
		require.NoError(t, f.Publish(ctx, Change{Table: TableGarments}))
	}
}

func TestWatchRefreshesOnEveryChange(t *testing.T) {
	f := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	refreshed := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, f, Filter{UserID: "ana@example.com"}, func(context.Context) error {
			calls.Add(1)
			refreshed <- struct{}{}
			return nil
		})
	}()

	<-refreshed // initial load
	require.NoError(t, Publish(ctx, f, "ana@example.com", TableWardrobe, TableRequests))
	<-refreshed
	<-refreshed

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWatchStopsOnRefreshError(t *testing.T) {
	f := NewMemory()
	boom := errors.New("boom")

	err := Watch(context.Background(), f, Filter{}, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
