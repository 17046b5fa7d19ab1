// Package redis provides Redis-backed adapters for the trip system.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roamline/trip-api/internal/core"
)

// ErrSessionNotFound is returned when a token does not resolve to a live session.
var ErrSessionNotFound = core.ErrSessionNotFound

// Session is the record stored per login token.
type Session struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionStore resolves bearer tokens to user identities. It implements
// core.SessionStore. TTL semantics follow the session ExpiresAt, so Redis
// drops expired sessions on its own.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, "session:")
}

// NewSessionStoreWithPrefix creates a session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
	}
}

// Save stores a session under the given token, expiring at sess.ExpiresAt.
func (s *SessionStore) Save(ctx context.Context, token string, sess Session) error {
	if token == "" {
		return errors.New("session token cannot be empty")
	}
	if sess.UserID == "" {
		return errors.New("session user ID cannot be empty")
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is already expired")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, s.prefix+token, data, ttl).Err()
}

// UserID resolves a token to the owning user, or ErrSessionNotFound.
func (s *SessionStore) UserID(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}

	var sess Session
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		return "", fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	// Redis TTL should have expired the key already, but clocks drift.
	if time.Now().After(sess.ExpiresAt) {
		if deleteErr := s.Delete(ctx, token); deleteErr != nil {
			return "", fmt.Errorf("cleanup expired session: %w", deleteErr)
		}
		return "", ErrSessionNotFound
	}

	return sess.UserID, nil
}

// Delete removes the session for a token. Deleting a missing token is a no-op.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+token).Err()
}
