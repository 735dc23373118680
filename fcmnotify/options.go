package fcmnotify

import (
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-fcm-notification/internal/oauth"
)

// AccessToken is a bearer token granted for the service account.
type AccessToken = oauth.AccessToken

// SharedTokenStore lets replicas that use the same credential share one token.
// Load must return nil, nil when nothing is stored.
type SharedTokenStore = oauth.SharedStore

// HTTPDoer is the subset of *http.Client the library needs.
type HTTPDoer = oauth.HTTPDoer

type options struct {
	client        HTTPDoer
	logger        *slog.Logger
	refreshBuffer time.Duration
	sendEndpoint  string
	shared        SharedTokenStore
	clock         func() time.Time
}

// Option configures a Service.
type Option func(*options)

// WithHTTPClient sets the client used for both the token exchange and the send
// call. Timeouts and transport policy are the client's responsibility.
func WithHTTPClient(client HTTPDoer) Option {
	return func(o *options) {
		if client != nil {
			o.client = client
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRefreshBuffer sets how long before expiry a token is replaced.
func WithRefreshBuffer(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.refreshBuffer = d
		}
	}
}

// WithSendEndpoint overrides the FCM host, e.g. for a local fake.
func WithSendEndpoint(endpoint string) Option {
	return func(o *options) {
		o.sendEndpoint = endpoint
	}
}

// WithSharedTokenStore adds a shared token slot, such as the Redis store.
func WithSharedTokenStore(store SharedTokenStore) Option {
	return func(o *options) {
		o.shared = store
	}
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}
