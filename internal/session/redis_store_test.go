package session

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, 30*time.Minute, 200*time.Millisecond), mr
}

func TestRedisStoreGetMissingReturnsIdle(t *testing.T) {
	store, _ := newTestRedisStore(t)

	sess, err := store.Get(context.Background(), "garage", "user-1")
	require.NoError(t, err)
	assert.Equal(t, StageIdle, sess.Stage)
	assert.True(t, sess.Draft.IsEmpty())
	assert.Equal(t, "garage", sess.TenantID)
	assert.Equal(t, "user-1", sess.UserID)
}

func TestRedisStoreSaveGetClear(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	sess := New("garage", "user-1")
	sess.Stage = StageConfirming
	sess.Draft = Draft{Name: "Paul", Date: "2025-06-10", Time: "14:00"}
	require.NoError(t, store.Save(ctx, sess))

	assert.Equal(t, 30*time.Minute, mr.TTL("session:garage:user-1"))

	got, err := store.Get(ctx, "garage", "user-1")
	require.NoError(t, err)
	assert.Equal(t, StageConfirming, got.Stage)
	assert.Equal(t, sess.Draft, got.Draft)
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, store.Clear(ctx, "garage", "user-1"))
	got, err = store.Get(ctx, "garage", "user-1")
	require.NoError(t, err)
	assert.Equal(t, StageIdle, got.Stage)
}

func TestRedisStoreSessionsAreScopedPerTenantAndUser(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	a := New("garage-a", "user")
	a.Draft.Name = "Alice"
	require.NoError(t, store.Save(ctx, a))

	b, err := store.Get(ctx, "garage-b", "user")
	require.NoError(t, err)
	assert.True(t, b.Draft.IsEmpty())
}

func TestRedisStoreExpiresAbandonedSessions(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	sess := New("garage", "user-1")
	sess.Stage = StageCollecting
	sess.Draft.Name = "Paul"
	require.NoError(t, store.Save(ctx, sess))

	mr.FastForward(31 * time.Minute)

	got, err := store.Get(ctx, "garage", "user-1")
	require.NoError(t, err)
	assert.Equal(t, StageIdle, got.Stage)
	assert.True(t, got.Draft.IsEmpty())
}

func TestRedisStoreLockSerializesTurns(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	unlock, err := store.Lock(ctx, "garage", "user-1")
	require.NoError(t, err)

	_, err = store.Lock(ctx, "garage", "user-1")
	assert.True(t, errors.Is(err, ErrLockTimeout), "second turn must wait for the first")

	other, err := store.Lock(ctx, "garage", "user-2")
	require.NoError(t, err, "other users are not blocked")
	other()

	unlock()
	again, err := store.Lock(ctx, "garage", "user-1")
	require.NoError(t, err)
	again()
}

func TestRedisStoreUnlockKeepsForeignLock(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	unlock, err := store.Lock(ctx, "garage", "user-1")
	require.NoError(t, err)

	// Simulate the lock expiring and another turn taking it over.
	require.NoError(t, mr.Set("session:lock:garage:user-1", "someone-else"))
	unlock()

	got, err := mr.Get("session:lock:garage:user-1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisStoreLockHonoursContext(t *testing.T) {
	store, _ := newTestRedisStore(t)
	store.lockWait = time.Minute

	unlock, err := store.Lock(context.Background(), "garage", "user-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err = store.Lock(ctx, "garage", "user-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisStoreLockOutlivesTTLWhileHeld(t *testing.T) {
	store, mr := newTestRedisStore(t)
	store.lockTTL = 300 * time.Millisecond
	key := "session:lock:garage:user-1"

	unlock, err := store.Lock(context.Background(), "garage", "user-1")
	require.NoError(t, err)

	mr.FastForward(200 * time.Millisecond)
	require.True(t, mr.Exists(key))
	assert.Eventually(t, func() bool {
		return mr.TTL(key) > 250*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond, "holder must extend the lock TTL")

	mr.FastForward(250 * time.Millisecond)
	_, err = store.Lock(context.Background(), "garage", "user-1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock()
	assert.False(t, mr.Exists(key))
}
