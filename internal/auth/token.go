package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "auth:token:"

// DefaultTokenTTL bounds how long an issued bearer token stays valid.
const DefaultTokenTTL = 12 * time.Hour

// ErrTokenUnknown indicates an expired, revoked or never-issued token.
var ErrTokenUnknown = errors.New("auth: unknown token")

// TokenStore keeps opaque bearer tokens in redis, mapping token to
// principal id with a TTL.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore. A non-positive ttl falls back to
// DefaultTokenTTL.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenStore{client: client, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (t *TokenStore) TTL() time.Duration {
	return t.ttl
}

// Issue mints a fresh token for the principal.
func (t *TokenStore) Issue(ctx context.Context, principalID string) (string, error) {
	token := uuid.NewString()
	if err := t.client.Set(ctx, tokenKeyPrefix+token, principalID, t.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: issue token: %w", err)
	}
	return token, nil
}

// Resolve maps a presented token back to its principal id.
func (t *TokenStore) Resolve(ctx context.Context, token string) (string, error) {
	principalID, err := t.client.Get(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenUnknown
		}
		return "", fmt.Errorf("auth: resolve token: %w", err)
	}
	return principalID, nil
}

// Revoke invalidates a token. Revoking an unknown token is not an error.
func (t *TokenStore) Revoke(ctx context.Context, token string) error {
	if err := t.client.Del(ctx, tokenKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}
