// Package monitoring exposes operational counters for the service over the
// standard Prometheus registry.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all service counters. It satisfies the Recorder interfaces
// of the feed and alerts packages.
type Metrics struct {
	registry *prometheus.Registry

	pollCycles         *prometheus.CounterVec
	incrementalFetches *prometheus.CounterVec
	mergedReadings     *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	fallbacks          prometheus.Counter
	httpRequests       *prometheus.CounterVec
}

// NewMetrics creates a Metrics set on its own registry, keeping the default
// registry clean for tests that build more than one instance.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		pollCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agripal_feed_poll_cycles_total",
			Help: "Poll cycles per device, labeled by result.",
		}, []string{"device_id", "result"}),
		incrementalFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agripal_feed_incremental_fetches_total",
			Help: "Push-triggered incremental fetches that merged rows.",
		}, []string{"device_id"}),
		mergedReadings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agripal_feed_merged_readings_total",
			Help: "Readings merged through incremental fetches.",
		}, []string{"device_id"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agripal_notifications_created_total",
			Help: "Notifications created, labeled by type.",
		}, []string{"type"}),
		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "agripal_generation_fallbacks_total",
			Help: "Irrigation alerts that fell back to the fixed template.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agripal_http_requests_total",
			Help: "HTTP requests served, labeled by method, route and status.",
		}, []string{"method", "route", "status"}),
	}
}

// PollCompleted records one poll cycle for a device.
func (m *Metrics) PollCompleted(deviceID string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.pollCycles.WithLabelValues(deviceID, result).Inc()
}

// IncrementalFetch records a push-triggered merge.
func (m *Metrics) IncrementalFetch(deviceID string, merged int) {
	m.incrementalFetches.WithLabelValues(deviceID).Inc()
	m.mergedReadings.WithLabelValues(deviceID).Add(float64(merged))
}

// NotificationCreated records one created notification.
func (m *Metrics) NotificationCreated(notifType string) {
	m.notifications.WithLabelValues(notifType).Inc()
}

// GenerationFallback records one fixed-template fallback.
func (m *Metrics) GenerationFallback() {
	m.fallbacks.Inc()
}

// RecordRequest records one served request.
func (m *Metrics) RecordRequest(method, route, status string) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
}

// Handler returns the /metrics endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
