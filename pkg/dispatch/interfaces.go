package dispatch

import (
	"context"
	"time"

	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

// Sender defines the contract for a component that delivers a single
// notification to one device.
type Sender interface {
	// Send delivers the payload and returns the provider's acknowledgement.
	Send(ctx context.Context, payload notification.NotificationPayload) (notification.Ack, error)
}

// Receipt records the outcome of one send attempt.
// The device token itself is never stored, only its fingerprint.
type Receipt struct {
	ID        string    `firestore:"-" json:"id"`
	MessageID string    `firestore:"messageId,omitempty" json:"message_id,omitempty"`
	Device    string    `firestore:"device" json:"device"`
	Status    int       `firestore:"status" json:"status"`
	Error     string    `firestore:"error,omitempty" json:"error,omitempty"`
	Caller    string    `firestore:"caller,omitempty" json:"caller,omitempty"`
	CreatedAt time.Time `firestore:"createdAt" json:"created_at"`
}

// ReceiptStore defines the contract for persisting delivery receipts.
type ReceiptStore interface {
	// Record persists a receipt and returns its generated id.
	Record(ctx context.Context, receipt Receipt) (string, error)

	// Recent returns up to n receipts, newest first.
	Recent(ctx context.Context, n int) ([]Receipt, error)
}
