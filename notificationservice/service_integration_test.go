//go:build integration

package notificationservice_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/tinywideclouds/go-fcm-notification/internal/testutil"
	fsStore "github.com/tinywideclouds/go-fcm-notification/internal/storage/firestore"
	"github.com/tinywideclouds/go-fcm-notification/notificationservice"
	"github.com/tinywideclouds/go-fcm-notification/notificationservice/config"
	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

// --- MOCKS ---

type mockSender struct {
	mu          sync.Mutex
	callCount   int
	lastPayload notification.NotificationPayload
	failWith    error
}

func (m *mockSender) Send(_ context.Context, p notification.NotificationPayload) (notification.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastPayload = p
	if m.failWith != nil {
		return notification.Ack{}, m.failWith
	}
	return notification.Ack{MessageID: fmt.Sprintf("projects/p/messages/%d", m.callCount)}, nil
}

func (m *mockSender) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockSender) GetLastPayload() notification.NotificationPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPayload
}

var noopAuth = func(h http.Handler) http.Handler { return h }

// --- TEST ---

func TestNotificationService_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	logger := testutil.NewTestLogger()
	projectID := "test-project-integ"

	// 1. Emulators
	pubsubConn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	psClient, err := pubsub.NewClient(ctx, projectID, pubsubConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = psClient.Close() })

	fsConn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	fsClient, err := firestore.NewClient(ctx, projectID, fsConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fsClient.Close() })

	// 2. Receipt Store (Firestore Implementation)
	receipts := fsStore.NewReceiptStore(fsClient, "receipts-"+uuid.NewString())

	t.Run("Full Lifecycle: Publish -> Process -> Send -> Receipt", func(t *testing.T) {
		topicID := "push-success-" + uuid.NewString()
		subID := topicID + "-sub"
		createPubsubResources(t, ctx, psClient, projectID, topicID, subID)

		sender := &mockSender{}
		recording := fsStore.NewRecordingSender(sender, receipts, logger)

		consumerCfg := *messagepipeline.NewGooglePubsubConsumerDefaults(subID)
		consumer, err := messagepipeline.NewGooglePubsubConsumer(&consumerCfg, psClient, logger)
		require.NoError(t, err)

		svc, err := notificationservice.New(
			&config.Config{ListenAddr: ":0", NumPipelineWorkers: 2},
			consumer,
			recording,
			receipts,
			noopAuth,
			logger,
		)
		require.NoError(t, err)

		svcCtx, svcCancel := context.WithCancel(ctx)
		defer svcCancel()
		go func() { _ = svc.Start(svcCtx) }()
		t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

		payload := notification.NotificationPayload{
			Token: "android-token-999",
			Title: "Hello",
			Body:  "From the pipeline",
			Data:  map[string]string{"k": "v"},
		}
		raw, _ := json.Marshal(payload)
		_, err = psClient.Publisher(topicID).Publish(ctx, &pubsub.Message{Data: raw}).Get(ctx)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return sender.GetCallCount() == 1
		}, 10*time.Second, 100*time.Millisecond)
		assert.Equal(t, payload, sender.GetLastPayload())

		require.Eventually(t, func() bool {
			recent, err := receipts.Recent(ctx, 10)
			return err == nil && len(recent) == 1
		}, 5*time.Second, 100*time.Millisecond)

		recent, err := receipts.Recent(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, "projects/p/messages/1", recent[0].MessageID)
		assert.Equal(t, payload.Fingerprint(), recent[0].Device)
	})

	t.Run("Permanent rejection is acked, not redelivered", func(t *testing.T) {
		topicID := "push-reject-" + uuid.NewString()
		subID := topicID + "-sub"
		createPubsubResources(t, ctx, psClient, projectID, topicID, subID)

		sender := &mockSender{failWith: &notification.NotificationError{Status: http.StatusNotFound, Body: []byte(`{"error":{"status":"NOT_FOUND"}}`)}}

		consumerCfg := *messagepipeline.NewGooglePubsubConsumerDefaults(subID)
		consumer, err := messagepipeline.NewGooglePubsubConsumer(&consumerCfg, psClient, logger)
		require.NoError(t, err)

		svc, err := notificationservice.New(&config.Config{ListenAddr: ":0", NumPipelineWorkers: 1}, consumer, sender, nil, noopAuth, logger)
		require.NoError(t, err)

		svcCtx, svcCancel := context.WithCancel(ctx)
		defer svcCancel()
		go func() {
			if err := svc.Start(svcCtx); err != nil && !errors.Is(err, context.Canceled) {
				t.Logf("service.Start() returned an error: %v", err)
			}
		}()
		t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

		raw, _ := json.Marshal(notification.NotificationPayload{Token: "stale-token", Title: "x", Body: "y"})
		_, err = psClient.Publisher(topicID).Publish(ctx, &pubsub.Message{Data: raw}).Get(ctx)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return sender.GetCallCount() >= 1
		}, 10*time.Second, 100*time.Millisecond)

		// With a 1s minimum backoff a nacked message would be redelivered well within this window.
		time.Sleep(3 * time.Second)
		assert.Equal(t, 1, sender.GetCallCount())
	})
}

func createPubsubResources(t *testing.T, ctx context.Context, client *pubsub.Client, projectID, topicID, subID string) {
	t.Helper()
	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err := client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.TopicAdminClient.DeleteTopic(context.Background(), &pubsubpb.DeleteTopicRequest{Topic: topicName})
	})

	subName := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
	sub := &pubsubpb.Subscription{
		Name:               subName,
		Topic:              topicName,
		AckDeadlineSeconds: 10,
		RetryPolicy: &pubsubpb.RetryPolicy{
			MinimumBackoff: &durationpb.Duration{Seconds: 1},
		},
	}
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, sub)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.SubscriptionAdminClient.DeleteSubscription(context.Background(), &pubsubpb.DeleteSubscriptionRequest{Subscription: subName})
	})
}
