package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tinywideclouds/go-fcm-notification/internal/oauth"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns ErrCacheMiss if the key does not exist.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// SharedTokenStore keeps one access token per service account in Redis so that
// replicas sharing a credential reuse the same token. It implements oauth.SharedStore.
//
// It never judges freshness: the TokenCache decides whether a loaded token is usable.
type SharedTokenStore struct {
	cache CacheClient
	now   func() time.Time
}

// NewSharedTokenStore creates the store.
func NewSharedTokenStore(cache CacheClient) *SharedTokenStore {
	return &SharedTokenStore{
		cache: cache,
		now:   time.Now,
	}
}

// Load returns nil, nil when no token is stored for account.
func (s *SharedTokenStore) Load(ctx context.Context, account string) (*oauth.AccessToken, error) {
	var tok oauth.AccessToken
	err := s.cache.Get(ctx, s.cacheKey(account), &tok)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shared token: %w", err)
	}
	return &tok, nil
}

// Save stores token until its expiry. Already expired tokens are not stored.
func (s *SharedTokenStore) Save(ctx context.Context, account string, token oauth.AccessToken) error {
	ttl := token.Expiry.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, s.cacheKey(account), token, ttl); err != nil {
		return fmt.Errorf("failed to save shared token: %w", err)
	}
	return nil
}

// Clear removes the stored token for account.
func (s *SharedTokenStore) Clear(ctx context.Context, account string) error {
	if err := s.cache.Del(ctx, s.cacheKey(account)); err != nil {
		return fmt.Errorf("failed to clear shared token: %w", err)
	}
	return nil
}

func (s *SharedTokenStore) cacheKey(account string) string {
	return fmt.Sprintf("fcm:access-token:%s", account)
}
