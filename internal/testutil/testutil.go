// Package testutil builds throwaway service-account credentials for tests.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"sync"
	"testing"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
	keyErr  error
)

// PrivateKey returns a 2048-bit RSA key shared by all tests in the binary.
func PrivateKey(tb testing.TB) *rsa.PrivateKey {
	tb.Helper()
	keyOnce.Do(func() {
		testKey, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if keyErr != nil {
		tb.Fatalf("generate rsa key: %v", keyErr)
	}
	return testKey
}

// PrivateKeyPEM encodes the shared key as PKCS#8, the format Google issues.
func PrivateKeyPEM(tb testing.TB) string {
	tb.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(PrivateKey(tb))
	if err != nil {
		tb.Fatalf("marshal pkcs8: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

// CredentialFields returns a valid credential document as a map so tests can
// drop or corrupt individual fields.
func CredentialFields(tb testing.TB, tokenURI string) map[string]any {
	tb.Helper()
	return map[string]any{
		"type":                        "service_account",
		"project_id":                  "test-project",
		"private_key_id":              "key-id-1",
		"private_key":                 PrivateKeyPEM(tb),
		"client_email":                "sender@test-project.iam.gserviceaccount.com",
		"client_id":                   "123456789",
		"auth_uri":                    "https://accounts.google.com/o/oauth2/auth",
		"token_uri":                   tokenURI,
		"auth_provider_x509_cert_url": "https://www.googleapis.com/oauth2/v1/certs",
		"client_x509_cert_url":        "https://www.googleapis.com/robot/v1/metadata/x509/sender",
		"universe_domain":             "googleapis.com",
	}
}

// CredentialJSON marshals fields into a credential document.
func CredentialJSON(tb testing.TB, fields map[string]any) []byte {
	tb.Helper()
	b, err := json.Marshal(fields)
	if err != nil {
		tb.Fatalf("marshal credential: %v", err)
	}
	return b
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
