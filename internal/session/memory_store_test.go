package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	sess := New("garage", "u")
	sess.Stage = StageCollecting
	sess.Draft.Date = "2025-06-10"
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "garage", "u")
	require.NoError(t, err)
	assert.Equal(t, StageCollecting, got.Stage)
	assert.Equal(t, "2025-06-10", got.Draft.Date)

	got.Draft.Name = "mutated"
	again, _ := store.Get(ctx, "garage", "u")
	assert.Empty(t, again.Draft.Name, "callers get a copy")

	require.NoError(t, store.Clear(ctx, "garage", "u"))
	again, _ = store.Get(ctx, "garage", "u")
	assert.Equal(t, StageIdle, again.Stage)
}

func TestMemoryStoreTTL(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	sess := New("garage", "u")
	sess.Stage = StageConfirming
	require.NoError(t, store.Save(ctx, sess))

	now = now.Add(29 * time.Minute)
	got, _ := store.Get(ctx, "garage", "u")
	assert.Equal(t, StageConfirming, got.Stage)

	now = now.Add(2 * time.Minute)
	got, _ = store.Get(ctx, "garage", "u")
	assert.Equal(t, StageIdle, got.Stage)
}

func TestMemoryStoreLock(t *testing.T) {
	store := NewMemoryStore(0)

	unlock, err := store.Lock(context.Background(), "garage", "u")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = store.Lock(ctx, "garage", "u")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // idempotent

	again, err := store.Lock(context.Background(), "garage", "u")
	require.NoError(t, err)
	again()
}
