package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-fcm-notification/internal/testutil"
	"github.com/tinywideclouds/go-fcm-notification/notificationservice/config"
)

func TestNewConfigFromYaml(t *testing.T) {
	logger := testutil.NewTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		raw := []byte(`
project_id: yaml-project
listen_addr: ":9000"
credentials_file: /etc/fcm/sa.json
identity_service_url: http://identity:3000
topic_id: yaml-topic
subscription_id: yaml-subscription
subscription_dlq_topic_id: yaml-dlq
num_pipeline_workers: 5
cors:
  allowed_origins: ["http://yaml.com"]
  role: editor
redis:
  enabled: true
  addr: redis:6379
  db: 2
receipts:
  enabled: true
  collection: yaml-receipts
fcm:
  endpoint: http://fcm-fake:8085
  refresh_buffer: 90s
  http_timeout: 10s
`)
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal(raw, &yamlCfg))

		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, "http://identity:3000", cfg.IdentityServiceURL)
		assert.Equal(t, "yaml-topic", cfg.TopicID)
		assert.Equal(t, "yaml-subscription", cfg.SubscriptionID)
		assert.Equal(t, "yaml-dlq", cfg.SubscriptionDLQTopicID)
		assert.Equal(t, 5, cfg.NumPipelineWorkers)

		assert.Equal(t, []string{"http://yaml.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, middleware.CorsRoleEditor, cfg.CorsConfig.Role)

		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, "redis:6379", cfg.Redis.Addr)
		assert.Equal(t, 2, cfg.Redis.DB)
		assert.True(t, cfg.Receipts.Enabled)
		assert.Equal(t, "yaml-receipts", cfg.Receipts.Collection)

		assert.Equal(t, "/etc/fcm/sa.json", cfg.FCM.CredentialsFile)
		assert.Equal(t, "http://fcm-fake:8085", cfg.FCM.Endpoint)
		assert.Equal(t, 90*time.Second, cfg.FCM.RefreshBuffer)
		assert.Equal(t, 10*time.Second, cfg.FCM.HTTPTimeout)

		assert.NotNil(t, cfg.PubsubConsumerConfig)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID: "minimal-project",
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Equal(t, 0, cfg.NumPipelineWorkers)
		assert.Empty(t, cfg.ListenAddr)
		assert.Zero(t, cfg.FCM.RefreshBuffer)
		assert.Nil(t, cfg.PubsubConsumerConfig)
	})

	t.Run("Failure - invalid duration", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID: "p",
			FCMConfig: config.YamlFCMConfig{HTTPTimeout: "ten seconds"},
		}

		_, err := config.NewConfigFromYaml(yamlCfg, logger)
		assert.ErrorContains(t, err, "fcm.http_timeout")
	})
}
