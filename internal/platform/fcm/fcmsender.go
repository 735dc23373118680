// Package fcm sends notifications through the Firebase Cloud Messaging HTTP v1 API.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tinywideclouds/go-fcm-notification/internal/metrics"
	"github.com/tinywideclouds/go-fcm-notification/internal/oauth"
	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

// DefaultEndpoint is the production FCM host.
const DefaultEndpoint = "https://fcm.googleapis.com"

const maxResponseBody = 1 << 20

// TokenProvider hands out a bearer token that is valid for the next request.
// *oauth.TokenCache satisfies it.
type TokenProvider interface {
	Token(ctx context.Context) (oauth.AccessToken, error)
}

// envelope is the messages:send request body.
type envelope struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification notificationBlock `json:"notification"`
	// nil and empty maps are both omitted.
	Data map[string]string `json:"data,omitempty"`
}

type notificationBlock struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type sendResponse struct {
	Name string `json:"name"`
}

// Sender issues one authorized messages:send request per notification.
// It holds no mutable state and is safe for concurrent use.
type Sender struct {
	client  oauth.HTTPDoer
	tokens  TokenProvider
	sendURL string
	logger  *slog.Logger
}

// NewSender creates a Sender for projectID. An empty endpoint means DefaultEndpoint.
func NewSender(projectID, endpoint string, tokens TokenProvider, client oauth.HTTPDoer, logger *slog.Logger) *Sender {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Sender{
		client:  client,
		tokens:  tokens,
		sendURL: fmt.Sprintf("%s/v1/projects/%s/messages:send", endpoint, url.PathEscape(projectID)),
		logger:  logger.With("component", "FCMSender"),
	}
}

// BuildEnvelope returns the JSON body for payload.
func BuildEnvelope(payload notification.NotificationPayload) ([]byte, error) {
	return json.Marshal(envelope{
		Message: message{
			Token: payload.Token,
			Notification: notificationBlock{
				Title: payload.Title,
				Body:  payload.Body,
			},
			Data: payload.Data,
		},
	})
}

// Send delivers payload. A non-2xx answer is returned as a
// *notification.NotificationError carrying the provider body unchanged.
func (s *Sender) Send(ctx context.Context, payload notification.NotificationPayload) (notification.Ack, error) {
	tok, err := s.tokens.Token(ctx)
	if err != nil {
		metrics.NotificationsSentTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return notification.Ack{}, err
	}

	body, err := BuildEnvelope(payload)
	if err != nil {
		metrics.NotificationsSentTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return notification.Ack{}, fmt.Errorf("failed to marshal fcm message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL, bytes.NewReader(body))
	if err != nil {
		metrics.NotificationsSentTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return notification.Ack{}, fmt.Errorf("failed to build fcm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.NotificationsSentTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return notification.Ack{}, &notification.TransportError{Op: "fcm send", Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		metrics.NotificationsSentTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return notification.Ack{}, &notification.TransportError{Op: "read fcm response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.NotificationsSentTotal.WithLabelValues(metrics.ResultRejected).Inc()
		s.logger.Warn("FCM rejected notification", "status", resp.StatusCode, "device", payload.Fingerprint()[:12])
		return notification.Ack{}, &notification.NotificationError{Status: resp.StatusCode, Body: respBody}
	}

	var sr sendResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		s.logger.Debug("FCM accepted notification without a parsable body", "err", err)
	}
	metrics.NotificationsSentTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	s.logger.Debug("FCM accepted notification", "message_id", sr.Name)
	return notification.Ack{MessageID: sr.Name}, nil
}
