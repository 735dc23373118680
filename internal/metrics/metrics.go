// Package metrics provides Prometheus metrics for token refreshes and sends.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
	ResultShared   = "shared"
)

var (
	// TokenRefreshTotal counts access-token refreshes by outcome.
	// "shared" means a valid token was adopted from the shared store.
	TokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fcm",
			Subsystem: "token",
			Name:      "refresh_total",
			Help:      "Total number of access token refreshes",
		},
		[]string{"result"},
	)

	// TokenRefreshDuration observes sign+exchange latency.
	TokenRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fcm",
			Subsystem: "token",
			Name:      "refresh_duration_seconds",
			Help:      "Latency of access token refreshes",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	// NotificationsSentTotal counts send attempts.
	// "rejected" is a non-2xx answer from the provider, "failure" is anything
	// that prevented the request from being answered.
	NotificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fcm",
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Total number of notification send attempts",
		},
		[]string{"result"},
	)
)

// Register registers all collectors on reg (or the default registerer if nil).
// Collectors that are already registered are ignored.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{TokenRefreshTotal, TokenRefreshDuration, NotificationsSentTotal} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
