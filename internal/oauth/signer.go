// Package oauth turns a service-account key into short-lived bearer tokens:
// it signs JWT-bearer assertions, exchanges them at the token endpoint and
// caches the resulting access token for concurrent callers.
package oauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tinywideclouds/go-fcm-notification/internal/credentials"
	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

const (
	// MessagingScope is the OAuth2 scope required by the FCM HTTP v1 API.
	MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

	// DefaultAssertionValidity is the lifetime of a signed assertion.
	DefaultAssertionValidity = time.Hour
)

// Signer builds RS256 JWT-bearer assertions. It holds no mutable state.
type Signer struct {
	scope    string
	validity time.Duration
}

// NewSigner returns a Signer for the FCM messaging scope.
func NewSigner() *Signer {
	return &Signer{scope: MessagingScope, validity: DefaultAssertionValidity}
}

// Scope is the scope string placed in every assertion.
func (s *Signer) Scope() string {
	return s.scope
}

// Sign returns the compact header.payload.signature form of an assertion
// issued at now by key's service account for key's token endpoint.
func (s *Signer) Sign(key *credentials.ServiceAccountKey, now time.Time) (string, error) {
	if key == nil || key.PrivateKey == nil {
		return "", &notification.CryptoError{Op: "sign assertion", Cause: errors.New("no private key")}
	}

	claims := jwt.MapClaims{
		"iss":   key.ClientEmail,
		"scope": s.scope,
		"aud":   key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(s.validity).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = key.PrivateKeyID

	signed, err := token.SignedString(key.PrivateKey)
	if err != nil {
		return "", &notification.CryptoError{Op: "sign assertion", Cause: err}
	}
	return signed, nil
}
