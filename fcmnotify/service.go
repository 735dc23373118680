// Package fcmnotify sends Firebase Cloud Messaging notifications authenticated
// with a Google service-account credential.
//
// A Service owns one credential, one token cache and one sender. It is safe
// for concurrent use; concurrent callers share a single token refresh.
//
//	svc, err := fcmnotify.New("service-account.json", fcmnotify.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	ack, err := svc.Send(ctx, notification.NotificationPayload{Token: t, Title: "Hi", Body: "There"})
package fcmnotify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/tinywideclouds/go-fcm-notification/internal/credentials"
	"github.com/tinywideclouds/go-fcm-notification/internal/oauth"
	"github.com/tinywideclouds/go-fcm-notification/internal/platform/fcm"
	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

const defaultHTTPTimeout = 30 * time.Second

// Service sends notifications for one service account.
type Service struct {
	key    *credentials.ServiceAccountKey
	tokens *oauth.TokenCache
	sender *fcm.Sender
	logger *slog.Logger
}

// New loads the credential file at credentialPath and builds a Service.
// Invalid credentials are reported before any network call is made.
func New(credentialPath string, opts ...Option) (*Service, error) {
	key, err := credentials.LoadFile(credentialPath)
	if err != nil {
		return nil, err
	}
	return newService(key, opts...), nil
}

// NewFromJSON is New for a credential already in memory.
func NewFromJSON(data []byte, opts ...Option) (*Service, error) {
	key, err := credentials.Load(data)
	if err != nil {
		return nil, err
	}
	return newService(key, opts...), nil
}

func newService(key *credentials.ServiceAccountKey, opts ...Option) *Service {
	o := options{
		client:        &http.Client{Timeout: defaultHTTPTimeout},
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		refreshBuffer: oauth.DefaultRefreshBuffer,
		sendEndpoint:  fcm.DefaultEndpoint,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cacheOpts := []oauth.CacheOption{
		oauth.WithRefreshBuffer(o.refreshBuffer),
		oauth.WithClock(o.clock),
		oauth.WithLogger(o.logger),
	}
	if o.shared != nil {
		cacheOpts = append(cacheOpts, oauth.WithSharedStore(o.shared))
	}

	tokens := oauth.NewTokenCache(key, oauth.NewSigner(), oauth.NewExchanger(o.client, o.clock), cacheOpts...)

	logger := o.logger.With("project_id", key.ProjectID)
	logger.Info("FCM service initialized", "account", key.ClientEmail, "endpoint", o.sendEndpoint)

	return &Service{
		key:    key,
		tokens: tokens,
		sender: fcm.NewSender(key.ProjectID, o.sendEndpoint, tokens, o.client, o.logger),
		logger: logger,
	}
}

// Send delivers one notification. Errors are one of the notification package's
// typed errors: *AuthError or *CryptoError for token failures,
// *NotificationError for provider rejections and *TransportError for network
// failures. A ctx that ends while waiting on a token refresh also yields a
// *TransportError; errors.Is still matches context.Canceled or DeadlineExceeded.
func (s *Service) Send(ctx context.Context, payload notification.NotificationPayload) (notification.Ack, error) {
	return s.sender.Send(ctx, payload)
}

// ProjectID is the Firebase project notifications are sent to.
func (s *Service) ProjectID() string {
	return s.key.ProjectID
}

// Token returns a valid access token, refreshing it if necessary.
func (s *Service) Token(ctx context.Context) (AccessToken, error) {
	return s.tokens.Token(ctx)
}

// Invalidate discards the cached token so the next call refreshes.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.tokens.Invalidate(ctx)
}

// TokenSource exposes the token cache as an oauth2.TokenSource bound to ctx.
// Every Token call goes through the cache.
func (s *Service) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, tokens: s.tokens}
}

type tokenSource struct {
	ctx    context.Context
	tokens *oauth.TokenCache
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.tokens.Token(ts.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: tok.Value,
		TokenType:   tok.TokenType,
		Expiry:      tok.Expiry,
	}, nil
}
