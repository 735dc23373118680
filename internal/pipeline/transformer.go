// Package pipeline contains the Pub/Sub message processing components for the service.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

// NotificationPayloadTransformer is a dataflow Transformer that unmarshals a raw
// message payload into a notification.NotificationPayload.
//
// Malformed messages are returned with skip=true so the StreamingService can
// handle the Nack/DLQ logic.
func NotificationPayloadTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*notification.NotificationPayload, bool, error) {
	var payload notification.NotificationPayload

	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal notification payload from message %s: %w", msg.ID, err)
	}

	if strings.TrimSpace(payload.Token) == "" {
		return nil, true, fmt.Errorf("notification payload in message %s has no device token", msg.ID)
	}

	return &payload, false, nil
}
