package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// memoryStore is an in-process LockStore. TTLs are ignored.
type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: make(map[string]string)}
}

func (s *memoryStore) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return false, s.setErr
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value
	return true, nil
}

func (s *memoryStore) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[key] != value {
		return false, nil
	}
	delete(s.values, key)
	return true, nil
}

func (s *memoryStore) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func TestTokenLocker(t *testing.T) {
	t.Parallel()

	t.Run("acquire and release", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		l := NewTokenLocker(store)

		unlock, err := l.Lock(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, held := store.get(DefaultLockKey); !held {
			t.Fatal("expected lock key to be set")
		}
		if err := unlock(context.Background()); err != nil {
			t.Fatalf("unexpected unlock error: %v", err)
		}
		if _, held := store.get(DefaultLockKey); held {
			t.Error("expected lock key to be deleted")
		}
	})

	t.Run("release does not delete another holder's token", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		l := NewTokenLocker(store, WithLockKey("k"))

		unlock, err := l.Lock(context.Background())
		if err != nil {
			t.Fatal(err)
		}

		// Simulate expiry followed by another holder.
		store.mu.Lock()
		store.values["k"] = "someone-else"
		store.mu.Unlock()

		if err := unlock(context.Background()); err != nil {
			t.Fatal(err)
		}
		if v, _ := store.get("k"); v != "someone-else" {
			t.Errorf("foreign token was deleted, value now %q", v)
		}
	})

	t.Run("waits until released", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		l := NewTokenLocker(store, WithLockPoll(time.Millisecond))

		unlock, err := l.Lock(context.Background())
		if err != nil {
			t.Fatal(err)
		}

		acquired := make(chan struct{})
		go func() {
			second, err := l.Lock(context.Background())
			if err != nil {
				t.Errorf("second lock failed: %v", err)
				close(acquired)
				return
			}
			close(acquired)
			_ = second(context.Background())
		}()

		select {
		case <-acquired:
			t.Fatal("second holder acquired a held lock")
		case <-time.After(20 * time.Millisecond):
		}

		if err := unlock(context.Background()); err != nil {
			t.Fatal(err)
		}

		select {
		case <-acquired:
		case <-time.After(2 * time.Second):
			t.Fatal("second holder never acquired the lock")
		}
	})

	t.Run("times out with context", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		store.values[DefaultLockKey] = "held"
		l := NewTokenLocker(store, WithLockPoll(time.Millisecond))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := l.Lock(ctx)
		if !errors.Is(err, ErrLockTimeout) {
			t.Errorf("expected ErrLockTimeout, got %v", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected wrapped deadline error, got %v", err)
		}
	})

	t.Run("store error is returned", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		store.setErr = errors.New("connection refused")
		l := NewTokenLocker(store)

		if _, err := l.Lock(context.Background()); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("options ignore zero values", func(t *testing.T) {
		t.Parallel()

		l := NewTokenLocker(newMemoryStore(), WithLockKey(""), WithLockTTL(0), WithLockPoll(0))
		if l.key != DefaultLockKey || l.ttl != DefaultLockTTL || l.poll != DefaultLockPoll {
			t.Errorf("unexpected settings %q %v %v", l.key, l.ttl, l.poll)
		}
	})
}

func TestCatalogWithTokenLocker(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	path := filepath.Join(t.TempDir(), "catalog.json")

	// Two catalogs on the same file stand in for two processes.
	a, err := Open(path, WithLocker(NewTokenLocker(store, WithLockPoll(time.Millisecond))), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Open(path, WithLocker(NewTokenLocker(store, WithLockPoll(time.Millisecond))), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i, c := range []*Catalog{a, b, a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alias := []string{"one", "two", "three", "four"}[i]
			if _, err := c.Append(context.Background(), entry(alias)); err != nil {
				t.Errorf("append %s failed: %v", alias, err)
			}
		}()
	}
	wg.Wait()

	if err := a.Reload(); err != nil {
		t.Fatal(err)
	}
	if a.Len() != 4 {
		t.Errorf("expected 4 entries, got %d", a.Len())
	}
	if _, held := store.get(DefaultLockKey); held {
		t.Error("lock left held after all appends")
	}
}
