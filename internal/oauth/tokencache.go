package oauth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/tinywideclouds/go-fcm-notification/internal/credentials"
	"github.com/tinywideclouds/go-fcm-notification/internal/metrics"
	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

// DefaultRefreshBuffer is how long before hard expiry a token stops being handed out.
const DefaultRefreshBuffer = 60 * time.Second

const refreshKey = "access-token"

// AssertionSigner signs JWT-bearer assertions.
type AssertionSigner interface {
	Sign(key *credentials.ServiceAccountKey, now time.Time) (string, error)
	Scope() string
}

// TokenExchanger trades an assertion for an access token.
type TokenExchanger interface {
	Exchange(ctx context.Context, tokenEndpoint, assertion string) (AccessToken, error)
}

// SharedStore is an optional second-level slot shared between replicas that
// use the same service account. Load returns nil, nil on a miss.
type SharedStore interface {
	Load(ctx context.Context, account string) (*AccessToken, error)
	Save(ctx context.Context, account string, token AccessToken) error
	Clear(ctx context.Context, account string) error
}

// TokenCache owns the current access token for one service account.
//
// All reads and writes of the token happen under mu. A caller that finds the
// token stale joins the in-flight refresh while still holding mu, so every
// caller observing a stale token shares one refresh and its outcome.
type TokenCache struct {
	key       *credentials.ServiceAccountKey
	signer    AssertionSigner
	exchanger TokenExchanger
	shared    SharedStore
	buffer    time.Duration
	now       Clock
	logger    *slog.Logger

	mu     sync.RWMutex
	token  *AccessToken
	flight singleflight.Group
}

// CacheOption configures a TokenCache.
type CacheOption func(*TokenCache)

// WithRefreshBuffer sets the refresh-ahead window.
func WithRefreshBuffer(d time.Duration) CacheOption {
	return func(c *TokenCache) {
		c.buffer = d
	}
}

// WithClock replaces time.Now.
func WithClock(clock Clock) CacheOption {
	return func(c *TokenCache) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithSharedStore adds a shared second-level slot.
func WithSharedStore(store SharedStore) CacheOption {
	return func(c *TokenCache) {
		c.shared = store
	}
}

// WithLogger sets the logger for refresh events.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *TokenCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewTokenCache creates an empty cache for key.
func NewTokenCache(key *credentials.ServiceAccountKey, signer AssertionSigner, exchanger TokenExchanger, opts ...CacheOption) *TokenCache {
	c := &TokenCache{
		key:       key,
		signer:    signer,
		exchanger: exchanger,
		buffer:    DefaultRefreshBuffer,
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "TokenCache", "account", key.ClientEmail)
	return c
}

// Token returns a token that is valid for at least the refresh buffer,
// refreshing it first if necessary.
//
// If ctx ends while a refresh is in flight, Token returns a *TransportError
// wrapping ctx.Err(), but the refresh still completes and updates the cache.
func (c *TokenCache) Token(ctx context.Context) (AccessToken, error) {
	c.mu.RLock()
	if c.token.validAt(c.now(), c.buffer) {
		tok := *c.token
		c.mu.RUnlock()
		return tok, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	// Double-check: another caller may have refreshed between the locks.
	if c.token.validAt(c.now(), c.buffer) {
		tok := *c.token
		c.mu.Unlock()
		return tok, nil
	}
	refreshCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(refreshKey, func() (interface{}, error) {
		return c.refresh(refreshCtx)
	})
	c.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			return AccessToken{}, res.Err
		}
		return res.Val.(AccessToken), nil
	case <-ctx.Done():
		return AccessToken{}, &notification.TransportError{Op: "await token refresh", Cause: ctx.Err()}
	}
}

// Invalidate drops the cached token (and the shared copy, if any).
func (c *TokenCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()

	if c.shared != nil {
		return c.shared.Clear(ctx, c.key.ClientEmail)
	}
	return nil
}

func (c *TokenCache) refresh(ctx context.Context) (AccessToken, error) {
	if c.shared != nil {
		shared, err := c.shared.Load(ctx, c.key.ClientEmail)
		if err != nil {
			c.logger.Warn("Shared token store lookup failed", "err", err)
		} else if shared.validAt(c.now(), c.buffer) {
			c.set(shared)
			metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultShared).Inc()
			c.logger.Debug("Adopted access token from shared store", "expiry", shared.Expiry)
			return *shared, nil
		}
	}

	timer := prometheus.NewTimer(metrics.TokenRefreshDuration)
	tok, err := c.fetch(ctx)
	timer.ObserveDuration()

	if err != nil {
		c.set(nil)
		if c.shared != nil {
			if clearErr := c.shared.Clear(ctx, c.key.ClientEmail); clearErr != nil {
				c.logger.Warn("Failed to clear shared token", "err", clearErr)
			}
		}
		metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultFailure).Inc()
		c.logger.Error("Access token refresh failed", "err", err)
		return AccessToken{}, err
	}

	c.set(&tok)
	if c.shared != nil {
		if saveErr := c.shared.Save(ctx, c.key.ClientEmail, tok); saveErr != nil {
			c.logger.Warn("Failed to save token to shared store", "err", saveErr)
		}
	}
	metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	c.logger.Info("Access token refreshed", "expiry", tok.Expiry.Format(time.RFC3339))
	return tok, nil
}

func (c *TokenCache) fetch(ctx context.Context) (AccessToken, error) {
	assertion, err := c.signer.Sign(c.key, c.now())
	if err != nil {
		return AccessToken{}, err
	}
	tok, err := c.exchanger.Exchange(ctx, c.key.TokenURI, assertion)
	if err != nil {
		return AccessToken{}, err
	}
	if tok.Scope == "" {
		tok.Scope = c.signer.Scope()
	}
	if !tok.validAt(c.now(), c.buffer) {
		return AccessToken{}, &notification.AuthError{
			Message: fmt.Sprintf("granted token is too short-lived: expires at %s, inside the %s refresh buffer", tok.Expiry.Format(time.RFC3339), c.buffer),
		}
	}
	return tok, nil
}

func (c *TokenCache) set(tok *AccessToken) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}
