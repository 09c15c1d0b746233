package catalog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default distributed lock settings.
const (
	// DefaultLockKey is the Redis key guarding the catalog.
	DefaultLockKey = "starsweep:catalog:lock"

	// DefaultLockTTL bounds how long a crashed holder can block others.
	DefaultLockTTL = 30 * time.Second

	// DefaultLockPoll is the retry interval while the lock is held elsewhere.
	DefaultLockPoll = 100 * time.Millisecond
)

// Locker guards catalog mutations across processes.
// Lock blocks until the lock is held or ctx is done, and returns the function
// that releases it.
type Locker interface {
	Lock(ctx context.Context) (unlock func(context.Context) error, err error)
}

// LockStore is the subset of a key-value store the token lock needs.
type LockStore interface {
	// SetNX stores value at key with ttl when key is absent.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// CompareAndDelete deletes key only while it still holds value.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}

// TokenLocker is a SET NX PX lock whose release only deletes the caller's token.
type TokenLocker struct {
	store LockStore
	key   string
	ttl   time.Duration
	poll  time.Duration
}

// LockOption configures a TokenLocker.
type LockOption func(*TokenLocker)

// WithLockKey sets the key guarding the catalog.
func WithLockKey(key string) LockOption {
	return func(l *TokenLocker) {
		if key != "" {
			l.key = key
		}
	}
}

// WithLockTTL sets the lock expiry.
func WithLockTTL(ttl time.Duration) LockOption {
	return func(l *TokenLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLockPoll sets the retry interval while waiting.
func WithLockPoll(poll time.Duration) LockOption {
	return func(l *TokenLocker) {
		if poll > 0 {
			l.poll = poll
		}
	}
}

// NewTokenLocker creates a lock on store.
func NewTokenLocker(store LockStore, opts ...LockOption) *TokenLocker {
	l := &TokenLocker{
		store: store,
		key:   DefaultLockKey,
		ttl:   DefaultLockTTL,
		poll:  DefaultLockPoll,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock implements Locker.
func (l *TokenLocker) Lock(ctx context.Context) (func(context.Context) error, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire catalog lock: %w", err)
		}
		if ok {
			return func(ctx context.Context) error {
				if _, err := l.store.CompareAndDelete(ctx, l.key, token); err != nil {
					return fmt.Errorf("failed to release catalog lock: %w", err)
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// compareAndDelete removes KEYS[1] only while it holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is a LockStore backed by go-redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis server at addr.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// SetNX implements LockStore.
func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

// CompareAndDelete implements LockStore.
func (s *RedisStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, s.client, []string{key}, value).Int()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
