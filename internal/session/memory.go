package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"chatfunnel/internal/clock"
)

type entry[T any] struct {
	v    T
	seen time.Time
}

// MemoryStore is an in-process Store. Values implementing io.Closer are
// closed when deleted, replaced or evicted.
type MemoryStore[T any] struct {
	clk clock.Clock

	mu sync.RWMutex // Get takes the write lock to refresh the idle time
	m  map[string]*entry[T]
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return NewMemoryStoreWithClock[T](clock.Real())
}

func NewMemoryStoreWithClock[T any](clk clock.Clock) *MemoryStore[T] {
	return &MemoryStore[T]{clk: clk, m: map[string]*entry[T]{}}
}

// Get returns the value for id and marks it as recently used.
func (s *MemoryStore[T]) Get(_ context.Context, id string) (T, bool, error) {
	now := s.clk.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[id]
	if !ok {
		var zero T
		return zero, false, nil
	}
	e.seen = now
	return e.v, true, nil
}

func (s *MemoryStore[T]) Put(_ context.Context, id string, v T) error {
	now := s.clk.Now()
	s.mu.Lock()
	old, ok := s.m[id]
	s.m[id] = &entry[T]{v: v, seen: now}
	s.mu.Unlock()
	if ok {
		if c, isCloser := any(old.v).(io.Closer); isCloser && !sameValue(old.v, v) {
			_ = c.Close()
		}
	}
	return nil
}

// sameValue reports whether a and b are equal. Values that cannot be
// compared are never the same.
func sameValue[T any](a, b T) bool {
	va, vb := reflect.ValueOf(any(a)), reflect.ValueOf(any(b))
	if !va.IsValid() || !vb.IsValid() {
		return !va.IsValid() && !vb.IsValid()
	}
	return va.Comparable() && vb.Comparable() && va.Equal(vb)
}

func (s *MemoryStore[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.m[id]
	delete(s.m, id)
	s.mu.Unlock()
	if ok {
		closeValue(e.v)
	}
	return nil
}

func (s *MemoryStore[T]) Sweep(_ context.Context, maxIdle time.Duration) (int, error) {
	cutoff := s.clk.Now().Add(-maxIdle)
	var evicted []T
	s.mu.Lock()
	for id, e := range s.m {
		if e.seen.Before(cutoff) {
			evicted = append(evicted, e.v)
			delete(s.m, id)
		}
	}
	s.mu.Unlock()
	for _, v := range evicted {
		closeValue(v)
	}
	return len(evicted), nil
}

// Len reports the number of live sessions.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

func (s *MemoryStore[T]) NewID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// RunSweeper calls Sweep every interval until ctx is done.
func RunSweeper[T any](ctx context.Context, s Store[T], interval, maxIdle time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx, maxIdle)
			if err != nil {
				logger.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("evicted idle sessions", "count", n)
			}
		}
	}
}

func closeValue[T any](v T) {
	if c, ok := any(v).(io.Closer); ok {
		_ = c.Close()
	}
}
