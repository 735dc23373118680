package firestore

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-fcm-notification/pkg/dispatch"
	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

// RecordingSender is a Decorator that writes a delivery receipt for every send.
// Receipts are best-effort: a failed write is logged and never changes the
// outcome returned to the caller.
type RecordingSender struct {
	next     dispatch.Sender
	receipts dispatch.ReceiptStore
	now      func() time.Time
	logger   *slog.Logger
}

// NewRecordingSender creates the decorator.
func NewRecordingSender(next dispatch.Sender, receipts dispatch.ReceiptStore, logger *slog.Logger) *RecordingSender {
	return &RecordingSender{
		next:     next,
		receipts: receipts,
		now:      time.Now,
		logger:   logger.With("component", "RecordingSender"),
	}
}

func (s *RecordingSender) Send(ctx context.Context, payload notification.NotificationPayload) (notification.Ack, error) {
	ack, sendErr := s.next.Send(ctx, payload)

	receipt := dispatch.Receipt{
		MessageID: ack.MessageID,
		Device:    payload.Fingerprint(),
		Status:    receiptStatus(sendErr),
		CreatedAt: s.now().UTC(),
	}
	if sendErr != nil {
		receipt.Error = sendErr.Error()
	}
	if caller, ok := middleware.GetUserIDFromContext(ctx); ok {
		receipt.Caller = caller
	}

	// The send already happened; the receipt must not be lost to a cancelled request.
	if _, err := s.receipts.Record(context.WithoutCancel(ctx), receipt); err != nil {
		s.logger.Warn("Failed to record delivery receipt", "err", err, "message_id", ack.MessageID)
	}

	return ack, sendErr
}

// receiptStatus maps an outcome onto an HTTP-like status code.
func receiptStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var notifErr *notification.NotificationError
	if errors.As(err, &notifErr) {
		return notifErr.Status
	}
	return http.StatusBadGateway
}
