// Package credentials parses and validates Google service-account key files.
package credentials

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

// ServiceAccountType is the only credential type accepted.
const ServiceAccountType = "service_account"

// ServiceAccountKey is the validated, in-memory form of a credential file.
// It is created once at startup and never mutated.
type ServiceAccountKey struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKeyPEM           string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri,omitempty"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url,omitempty"`
	ClientX509CertURL       string `json:"client_x509_cert_url,omitempty"`
	UniverseDomain          string `json:"universe_domain,omitempty"`

	// PrivateKey is PrivateKeyPEM, parsed.
	PrivateKey *rsa.PrivateKey `json:"-"`
}

// LoadFile reads a credential file from disk and validates it with Load.
func LoadFile(path string) (*ServiceAccountKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &notification.ConfigError{Message: "cannot read credential file", Cause: err}
	}
	return Load(data)
}

// Load parses a credential document. It performs no I/O.
func Load(data []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, &notification.ConfigError{Message: "not a JSON object", Cause: err}
	}

	required := []struct {
		field string
		value string
	}{
		{"type", key.Type},
		{"project_id", key.ProjectID},
		{"private_key_id", key.PrivateKeyID},
		{"private_key", key.PrivateKeyPEM},
		{"client_email", key.ClientEmail},
		{"client_id", key.ClientID},
		{"token_uri", key.TokenURI},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, &notification.ConfigError{Field: r.field, Message: "is required"}
		}
	}

	if key.Type != ServiceAccountType {
		return nil, &notification.ConfigError{
			Field:   "type",
			Message: fmt.Sprintf("expected %q, got %q", ServiceAccountType, key.Type),
		}
	}
	addr, err := mail.ParseAddress(key.ClientEmail)
	if err != nil {
		return nil, &notification.ConfigError{Field: "client_email", Message: "not an email address", Cause: err}
	}
	// The address becomes the assertion issuer verbatim, so only a bare address is accepted.
	if addr.Name != "" || addr.Address != key.ClientEmail {
		return nil, &notification.ConfigError{Field: "client_email", Message: "must be a bare email address"}
	}
	if err := validateEndpoint(key.TokenURI); err != nil {
		return nil, &notification.ConfigError{Field: "token_uri", Cause: err}
	}

	pk, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKeyPEM))
	if err != nil {
		return nil, &notification.ConfigError{
			Field: "private_key",
			Cause: &notification.CryptoError{Op: "parse private key", Cause: err},
		}
	}
	key.PrivateKey = pk

	return &key, nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
