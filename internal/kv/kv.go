// Package kv provides key-value stores with per-entry time-to-live.
// Expired entries are treated as absent on lookup; no background sweeper runs.
package kv

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("key not found")

// Store is the key-value capability used for sessions.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Clock returns the current time. Stores take one so tests can move time forward.
type Clock func() time.Time
