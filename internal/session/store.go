// Package session issues and validates opaque auth tokens on top of a
// key-value store with TTL.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/files-manager/internal/kv"
	"github.com/google/uuid"
)

// DefaultTTL is the absolute lifetime of a session.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "auth_"

var ErrNotFound = errors.New("session not found")

type Store struct {
	kv  kv.Store
	ttl time.Duration
}

func NewStore(store kv.Store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{kv: store, ttl: ttl}
}

// Issue creates a new token for userID. Existing sessions of the user are left alone.
func (s *Store) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := s.kv.Set(ctx, key(token), userID, s.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Validate returns the user bound to token, or ErrNotFound.
func (s *Store) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNotFound
	}
	userID, err := s.kv.Get(ctx, key(token))
	if errors.Is(err, kv.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	return userID, nil
}

func (s *Store) Revoke(ctx context.Context, token string) error {
	if err := s.kv.Del(ctx, key(token)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func key(token string) string {
	return keyPrefix + token
}
