package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	downloadsServed    prometheus.Counter
	downloadsDenied    *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
	purchasesRecorded  prometheus.Counter
	uploadsCompleted   prometheus.Counter
	uploadRetries      prometheus.Counter
	signedURLFallbacks prometheus.Counter
}

// New builds a Metrics with its own registry and standard process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		downloadsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aeromedia_downloads_served_total",
			Help: "Downloads granted and delivered.",
		}),
		downloadsDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aeromedia_downloads_denied_total",
			Help: "Download requests denied by the access gate.",
		}, []string{"reason"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aeromedia_webhook_events_total",
			Help: "Webhook deliveries by event type and outcome.",
		}, []string{"type", "outcome"}),
		purchasesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aeromedia_purchases_recorded_total",
			Help: "Purchases inserted from fulfilled checkout sessions.",
		}),
		uploadsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aeromedia_uploads_completed_total",
			Help: "Resumable uploads that reached completion.",
		}),
		uploadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aeromedia_upload_retries_total",
			Help: "Chunk attempts retried after transient failures.",
		}),
		signedURLFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aeromedia_signed_url_fallbacks_total",
			Help: "Deliveries that fell back to a public URL.",
		}),
	}
	registry.MustRegister(
		m.downloadsServed,
		m.downloadsDenied,
		m.webhookEvents,
		m.purchasesRecorded,
		m.uploadsCompleted,
		m.uploadRetries,
		m.signedURLFallbacks,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) DownloadServed() {
	if m != nil {
		m.downloadsServed.Inc()
	}
}

func (m *Metrics) DownloadDenied(reason string) {
	if m != nil {
		m.downloadsDenied.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) WebhookEvent(eventType, outcome string) {
	if m != nil {
		m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
	}
}

func (m *Metrics) PurchaseRecorded() {
	if m != nil {
		m.purchasesRecorded.Inc()
	}
}

func (m *Metrics) UploadCompleted() {
	if m != nil {
		m.uploadsCompleted.Inc()
	}
}

func (m *Metrics) UploadRetried() {
	if m != nil {
		m.uploadRetries.Inc()
	}
}

func (m *Metrics) SignedURLFallback() {
	if m != nil {
		m.signedURLFallbacks.Inc()
	}
}
