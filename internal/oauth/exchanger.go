package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

// JWTBearerGrantType is the RFC 7523 grant type for signed assertions.
const JWTBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// maxResponseBody bounds how much of a token response is read.
const maxResponseBody = 1 << 20

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// Exchanger trades a signed assertion for an access token.
// Each Exchange call makes exactly one request.
type Exchanger struct {
	client HTTPDoer
	now    Clock
}

// NewExchanger creates an Exchanger. A nil clock means time.Now.
func NewExchanger(client HTTPDoer, clock Clock) *Exchanger {
	if clock == nil {
		clock = time.Now
	}
	return &Exchanger{client: client, now: clock}
}

// Exchange posts the assertion to tokenEndpoint and returns the granted token.
// Expiry is computed from the time the request was issued.
func (e *Exchanger) Exchange(ctx context.Context, tokenEndpoint, assertion string) (AccessToken, error) {
	form := url.Values{
		"grant_type": {JWTBearerGrantType},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	requestTime := e.now()
	resp, err := e.client.Do(req)
	if err != nil {
		return AccessToken{}, &notification.TransportError{Op: "token exchange", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return AccessToken{}, &notification.TransportError{Op: "read token response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return AccessToken{}, &notification.AuthError{Status: resp.StatusCode, Body: body}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return AccessToken{}, &notification.AuthError{
			Status:  resp.StatusCode,
			Body:    body,
			Message: fmt.Sprintf("malformed token response: %v", err),
		}
	}
	switch {
	case tr.AccessToken == "":
		return AccessToken{}, &notification.AuthError{Status: resp.StatusCode, Body: body, Message: "missing access_token"}
	case tr.TokenType == "":
		return AccessToken{}, &notification.AuthError{Status: resp.StatusCode, Body: body, Message: "missing token_type"}
	case tr.ExpiresIn <= 0:
		return AccessToken{}, &notification.AuthError{Status: resp.StatusCode, Body: body, Message: "missing or non-positive expires_in"}
	}

	return AccessToken{
		Value:     tr.AccessToken,
		TokenType: tr.TokenType,
		Expiry:    requestTime.Add(time.Duration(tr.ExpiresIn) * time.Second),
		Scope:     tr.Scope,
	}, nil
}
