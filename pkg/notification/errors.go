package notification

import (
	"errors"
	"fmt"
)

// ConfigError indicates a malformed or incomplete service-account credential.
// It is permanent: nothing will succeed until the credential is replaced.
type ConfigError struct {
	Field   string // credential field at fault, empty when the whole document is bad
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	msg := "invalid credential"
	if e.Field != "" {
		msg = fmt.Sprintf("invalid credential field %q", e.Field)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// CryptoError indicates a private key that cannot be parsed or a signing failure.
type CryptoError struct {
	Op    string // e.g. "parse private key", "sign assertion"
	Cause error
}

func (e *CryptoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crypto error during %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("crypto error during %s", e.Op)
}

func (e *CryptoError) Unwrap() error {
	return e.Cause
}

// IsCryptoError returns true if the error is a CryptoError.
func IsCryptoError(err error) bool {
	var target *CryptoError
	return errors.As(err, &target)
}

// AuthError is returned when the token endpoint rejects the assertion or
// answers with a response that does not carry a usable access token.
// Status is zero when the failure was detected after a successful response.
type AuthError struct {
	Status  int    // HTTP status of the token endpoint response
	Body    []byte // response body, verbatim
	Message string
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return "token exchange failed: " + e.Message
	}
	if e.Message != "" {
		return fmt.Sprintf("token exchange failed (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("token exchange failed (status %d): %s", e.Status, string(e.Body))
}

// IsAuthError returns true if the error is an AuthError.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// NotificationError carries a non-2xx answer from the send endpoint.
// The provider's error body is kept verbatim and is not interpreted.
type NotificationError struct {
	Status int
	Body   []byte
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification rejected (status %d): %s", e.Status, string(e.Body))
}

// IsNotificationError returns true if the error is a NotificationError.
func IsNotificationError(err error) bool {
	var target *NotificationError
	return errors.As(err, &target)
}

// TransportError wraps a network-level failure reported by the HTTP client,
// or the caller's context ending while it waited on one.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsTransportError returns true if the error is a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
