package oauth

import (
	"net/http"
	"time"
)

// AccessToken is a bearer token granted by the token endpoint.
type AccessToken struct {
	Value     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	Expiry    time.Time `json:"expiry"`
	Scope     string    `json:"scope,omitempty"`
}

// validAt reports whether the token may still be handed out at now,
// keeping buffer of headroom before the hard expiry.
func (t *AccessToken) validAt(now time.Time, buffer time.Duration) bool {
	if t == nil || t.Value == "" {
		return false
	}
	return now.Before(t.Expiry.Add(-buffer))
}

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// HTTPDoer is the subset of *http.Client used for outbound calls.
// Timeouts and retries belong to the implementation.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
