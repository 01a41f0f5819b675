// Package metrics holds the prometheus collectors shared by the writer and
// projector services.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalogsync"

// Message results recorded by the projector.
const (
	ResultApplied     = "applied"
	ResultDecodeError = "decode_error"
	ResultApplyError  = "apply_error"
)

// Metrics is the collector set. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ProductsCreated prometheus.Counter
	PublishFailures prometheus.Counter
	Messages        *prometheus.CounterVec
	OutboxPublished prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	gatherer        prometheus.Gatherer
}

// New creates the collectors and registers them with reg. When reg is also a
// Gatherer, Handler serves from it.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProductsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_created_total",
			Help:      "Products persisted by the catalog writer",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Product events that could not be published",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages consumed by the projector, by result",
		}, []string{"result"}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox events relayed to the broker",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served",
		}, []string{"method", "path", "status"}),
	}
	reg.MustRegister(m.ProductsCreated, m.PublishFailures, m.Messages, m.OutboxPublished, m.HTTPRequests)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

func (m *Metrics) ProductCreated() {
	if m != nil {
		m.ProductsCreated.Inc()
	}
}

func (m *Metrics) PublishFailed() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

func (m *Metrics) Message(result string) {
	if m != nil {
		m.Messages.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) OutboxRelayed() {
	if m != nil {
		m.OutboxPublished.Inc()
	}
}

func (m *Metrics) Request(method, path string, status int) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	}
}

// Handler exposes the collectors in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
