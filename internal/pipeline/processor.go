package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-fcm-notification/pkg/dispatch"
	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

// NewProcessor creates the stage that sends each decoded payload.
//
// Returning an error nacks the message for redelivery. Provider rejections that
// will never succeed (4xx other than 408 and 429) are logged and acked instead.
func NewProcessor(
	sender dispatch.Sender,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[notification.NotificationPayload] {

	return func(ctx context.Context, original messagepipeline.Message, payload *notification.NotificationPayload) error {
		procLogger := logger.With(
			"device", payload.Fingerprint()[:12],
			"pubsub_msg_id", original.ID,
		)

		ack, err := sender.Send(ctx, *payload)
		if err == nil {
			procLogger.Info("FCM Dispatched", "message_id", ack.MessageID)
			return nil
		}

		if isPermanentRejection(err) {
			procLogger.Warn("FCM rejected notification; dropping", "err", err)
			return nil
		}

		procLogger.Error("FCM Dispatch failed", "err", err)
		return err // Retryable
	}
}

func isPermanentRejection(err error) bool {
	var notifErr *notification.NotificationError
	if !errors.As(err, &notifErr) {
		return false
	}
	switch notifErr.Status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return notifErr.Status >= 400 && notifErr.Status < 500
}
