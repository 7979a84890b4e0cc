// Package session keeps per-visitor state keyed by an opaque cookie id.
package session

import (
	"context"
	"time"
)

type Store[T any] interface {
	Get(ctx context.Context, id string) (T, bool, error)
	Put(ctx context.Context, id string, v T) error
	Delete(ctx context.Context, id string) error
	// Sweep evicts entries idle for longer than maxIdle and returns how many
	// were removed.
	Sweep(ctx context.Context, maxIdle time.Duration) (int, error)
	NewID() string
}
