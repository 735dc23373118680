package firestore_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-fcm-notification/internal/storage/firestore"
	"github.com/tinywideclouds/go-fcm-notification/internal/testutil"
	"github.com/tinywideclouds/go-fcm-notification/pkg/dispatch"
	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

// --- Mocks ---
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, p notification.NotificationPayload) (notification.Ack, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(notification.Ack), args.Error(1)
}

type MockReceiptStore struct {
	mock.Mock
}

func (m *MockReceiptStore) Record(ctx context.Context, r dispatch.Receipt) (string, error) {
	args := m.Called(ctx, r)
	return args.String(0), args.Error(1)
}

func (m *MockReceiptStore) Recent(ctx context.Context, n int) ([]dispatch.Receipt, error) {
	args := m.Called(ctx, n)
	return args.Get(0).([]dispatch.Receipt), args.Error(1)
}

func TestRecordingSender(t *testing.T) {
	logger := testutil.NewTestLogger()
	payload := notification.NotificationPayload{Token: "device-token-1", Title: "Hi", Body: "There"}

	t.Run("Records a successful send", func(t *testing.T) {
		ctx := middleware.ContextWithUserID(context.Background(), "urn:sm:user:sender")
		next := new(MockSender)
		store := new(MockReceiptStore)

		next.On("Send", ctx, payload).Return(notification.Ack{MessageID: "projects/p/messages/1"}, nil)
		store.On("Record", mock.Anything, mock.MatchedBy(func(r dispatch.Receipt) bool {
			return r.MessageID == "projects/p/messages/1" &&
				r.Status == http.StatusOK &&
				r.Device == payload.Fingerprint() &&
				r.Caller == "urn:sm:user:sender" &&
				r.Error == "" &&
				!r.CreatedAt.IsZero()
		})).Return("receipt-1", nil)

		ack, err := firestore.NewRecordingSender(next, store, logger).Send(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, "projects/p/messages/1", ack.MessageID)
		next.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("Caller is the user id when a handle is also present", func(t *testing.T) {
		ctx := middleware.ContextWithUser(context.Background(), "urn:sm:user:sender", "urn:sm:handle:alice", "")
		next := new(MockSender)
		store := new(MockReceiptStore)

		next.On("Send", ctx, payload).Return(notification.Ack{MessageID: "projects/p/messages/5"}, nil)
		store.On("Record", mock.Anything, mock.MatchedBy(func(r dispatch.Receipt) bool {
			return r.Caller == "urn:sm:user:sender"
		})).Return("receipt-5", nil)

		_, err := firestore.NewRecordingSender(next, store, logger).Send(ctx, payload)
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("Records a rejection with the provider status", func(t *testing.T) {
		ctx := context.Background()
		rejection := &notification.NotificationError{Status: http.StatusNotFound, Body: []byte(`{"error":{"status":"NOT_FOUND"}}`)}
		next := new(MockSender)
		store := new(MockReceiptStore)

		next.On("Send", ctx, payload).Return(notification.Ack{}, rejection)
		store.On("Record", mock.Anything, mock.MatchedBy(func(r dispatch.Receipt) bool {
			return r.Status == http.StatusNotFound && r.Error != "" && r.Caller == ""
		})).Return("receipt-2", nil)

		_, err := firestore.NewRecordingSender(next, store, logger).Send(ctx, payload)
		assert.Same(t, rejection, err)
		store.AssertExpectations(t)
	})

	t.Run("Receipt failure does not change the outcome", func(t *testing.T) {
		ctx := context.Background()
		next := new(MockSender)
		store := new(MockReceiptStore)

		next.On("Send", ctx, payload).Return(notification.Ack{MessageID: "m-3"}, nil)
		store.On("Record", mock.Anything, mock.Anything).Return("", errors.New("firestore unavailable"))

		ack, err := firestore.NewRecordingSender(next, store, logger).Send(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, "m-3", ack.MessageID)
	})

	t.Run("Device token is never persisted", func(t *testing.T) {
		ctx := context.Background()
		next := new(MockSender)
		store := new(MockReceiptStore)

		next.On("Send", ctx, payload).Return(notification.Ack{}, &notification.TransportError{Op: "fcm send", Cause: errors.New("reset")})
		store.On("Record", mock.Anything, mock.MatchedBy(func(r dispatch.Receipt) bool {
			return r.Status == http.StatusBadGateway && r.Device != payload.Token
		})).Return("receipt-4", nil)

		_, err := firestore.NewRecordingSender(next, store, logger).Send(ctx, payload)
		assert.True(t, notification.IsTransportError(err))
		store.AssertExpectations(t)
	})
}
