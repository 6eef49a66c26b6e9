package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTTL      = 30 * time.Minute
	defaultLockTTL  = 15 * time.Second
	defaultLockWait = 5 * time.Second
	lockRetry       = 50 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisStore keeps sessions as JSON blobs that expire after a period of inactivity.
type RedisStore struct {
	redis    *redis.Client
	tracer   trace.Tracer
	ttl      time.Duration
	lockTTL  time.Duration
	lockWait time.Duration
	now      func() time.Time
}

// NewRedisStore creates a store whose sessions expire ttl after their last save.
func NewRedisStore(client *redis.Client, ttl, lockWait time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	return &RedisStore{
		redis:    client,
		tracer:   otel.Tracer("botrdv.internal.session"),
		ttl:      ttl,
		lockTTL:  defaultLockTTL,
		lockWait: lockWait,
		now:      time.Now,
	}
}

func sessionKey(tenantID, userID string) string {
	return fmt.Sprintf("session:%s:%s", tenantID, userID)
}

func lockKey(tenantID, userID string) string {
	return fmt.Sprintf("session:lock:%s:%s", tenantID, userID)
}

func (s *RedisStore) Get(ctx context.Context, tenantID, userID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(tenantID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(tenantID, userID), nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: load: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	sess.TenantID, sess.UserID = tenantID, userID
	if sess.Stage == "" {
		sess.Stage = StageIdle
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	sess.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.TenantID, sess.UserID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, tenantID, userID string) error {
	ctx, span := s.tracer.Start(ctx, "session.clear")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(tenantID, userID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

// Lock acquires a short-lived redis lock for the user, polling until lockWait
// elapses. The lock carries a random token so a slow turn whose lock expired
// cannot release a lock now owned by the next turn. While held, the lock's
// TTL is extended every third of lockTTL, so a turn longer than lockTTL keeps
// it until unlock.
func (s *RedisStore) Lock(ctx context.Context, tenantID, userID string) (func(), error) {
	ctx, span := s.tracer.Start(ctx, "session.lock")
	defer span.End()

	key := lockKey(tenantID, userID)
	token := uuid.NewString()
	deadline := time.NewTimer(s.lockWait)
	defer deadline.Stop()

	for {
		ok, err := s.redis.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("session: acquire lock: %w", err)
		}
		if ok {
			return s.holdLock(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("session: acquire lock: %w", ctx.Err())
		case <-deadline.C:
			span.RecordError(ErrLockTimeout)
			return nil, ErrLockTimeout
		case <-time.After(lockRetry):
		}
	}
}

// holdLock keeps the lock alive until the returned func is called, then
// releases it.
func (s *RedisStore) holdLock(key, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL/3)
				held, err := extendScript.Run(ctx, s.redis, []string{key}, token, s.lockTTL.Milliseconds()).Int()
				cancel()
				if err == nil && held == 0 {
					// Lost to expiry; nothing left to extend.
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, s.redis, []string{key}, token).Err()
		})
	}
}

var _ Store = (*RedisStore)(nil)
