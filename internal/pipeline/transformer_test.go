package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-fcm-notification/internal/pipeline"
)

func TestNotificationPayloadTransformer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	testCases := []struct {
		name                  string
		payload               string
		expectError           bool
		expectedErrorContains string
	}{
		{
			name:    "Happy Path - Valid payload",
			payload: `{"token":"abc123","title":"New Like","body":"Someone liked your post!","data":{"post_id":"42"}}`,
		},
		{
			name:                  "Failure - Malformed JSON",
			payload:               "not-json",
			expectError:           true,
			expectedErrorContains: "failed to unmarshal notification payload",
		},
		{
			name:                  "Failure - Missing device token",
			payload:               `{"title":"New Like","body":"Someone liked your post!"}`,
			expectError:           true,
			expectedErrorContains: "has no device token",
		},
	}

	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: "msg-" + string(rune('1'+i)), Payload: []byte(tc.payload)},
			}
			out, skip, err := pipeline.NotificationPayloadTransformer(ctx, msg)

			if tc.expectError {
				require.Error(t, err)
				assert.True(t, skip)
				assert.Contains(t, err.Error(), tc.expectedErrorContains)
				return
			}
			require.NoError(t, err)
			assert.False(t, skip)
			assert.Equal(t, "abc123", out.Token)
			assert.Equal(t, "New Like", out.Title)
			assert.Equal(t, map[string]string{"post_id": "42"}, out.Data)
		})
	}
}
