package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records catalog sync and webhook activity.
type SyncMetrics struct {
	duration      *prometheus.HistogramVec
	success       *prometheus.CounterVec
	failure       *prometheus.CounterVec
	variantSkips  *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	webhookErrors *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_duration_seconds",
		Help:    "Duration of catalog sync operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_success",
		Help: "Successful catalog sync operations.",
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_failure",
		Help: "Failed catalog sync operations.",
	}, []string{"operation"})
	variantSkips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_variant_skips",
		Help: "Variants left at their previous value after exhausted retries.",
	}, []string{"operation"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events",
		Help: "Inbound supplier webhook events by type.",
	}, []string{"type"})
	webhookErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_errors",
		Help: "Webhook events whose processing failed after the ack.",
	}, []string{"type"})
	reg.MustRegister(duration, success, failure, variantSkips, webhookEvents, webhookErrors)
	return &SyncMetrics{
		duration:      duration,
		success:       success,
		failure:       failure,
		variantSkips:  variantSkips,
		webhookEvents: webhookEvents,
		webhookErrors: webhookErrors,
	}
}

// ObserveDuration records the duration for the named operation.
func (s *SyncMetrics) ObserveDuration(operation string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (s *SyncMetrics) IncSuccess(operation string) {
	if s == nil || s.success == nil {
		return
	}
	s.success.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (s *SyncMetrics) IncFailure(operation string) {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncVariantSkip counts a variant kept at its previous value after retries.
func (s *SyncMetrics) IncVariantSkip(operation string) {
	if s == nil || s.variantSkips == nil {
		return
	}
	s.variantSkips.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncWebhookEvent counts an inbound webhook event by type.
func (s *SyncMetrics) IncWebhookEvent(eventType string) {
	if s == nil || s.webhookEvents == nil {
		return
	}
	s.webhookEvents.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncWebhookError counts a webhook event that failed after the ack was sent.
// This is the structured sink for errors the external contract swallows.
func (s *SyncMetrics) IncWebhookError(eventType string) {
	if s == nil || s.webhookErrors == nil {
		return
	}
	s.webhookErrors.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
