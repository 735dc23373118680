// Package notification contains the public domain models and error types
// shared by the FCM sender, the token lifecycle code and the hosting service.
package notification

import (
	"crypto/sha256"
	"encoding/hex"
)

// NotificationPayload is a single notification addressed to one device.
// The registration token is opaque and is not validated locally.
type NotificationPayload struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Ack is returned for a notification the provider accepted.
type Ack struct {
	// MessageID is the provider's message name, e.g. "projects/p/messages/0:123".
	// It may be empty if the provider did not return one.
	MessageID string `json:"message_id,omitempty"`
}

// Fingerprint returns a stable, non-reversible identifier for the target
// device token, safe to log and persist.
func (p NotificationPayload) Fingerprint() string {
	sum := sha256.Sum256([]byte(p.Token))
	return hex.EncodeToString(sum[:])
}
