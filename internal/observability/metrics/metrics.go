package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics exposes counters/histograms for the conversation webhook.
type WebhookMetrics struct {
	inboundTotal   *prometheus.CounterVec
	replyChunks    prometheus.Histogram
	webhookLatency *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Total inbound WhatsApp webhook events",
		}, []string{"kind", "status"}),
		replyChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nexus",
			Subsystem: "webhook",
			Name:      "reply_chunks",
			Help:      "Number of chunks per dispatched reply",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12},
		}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nexus",
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.replyChunks, m.webhookLatency)
	return m
}

func (m *WebhookMetrics) ObserveInbound(kind, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *WebhookMetrics) ObserveReplyChunks(count int) {
	if m == nil {
		return
	}
	m.replyChunks.Observe(float64(count))
}

func (m *WebhookMetrics) ObserveLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(kind).Observe(seconds)
}
