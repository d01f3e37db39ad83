package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// request results used as the "result" label
const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultFailed   = "failed"
)

// Metrics per-server collectors, each server owns its registry so several
// servers can live in one process
type Metrics struct {
	Registry *prometheus.Registry

	ActiveConnections prometheus.Gauge
	Requests          *prometheus.CounterVec
	BytesReceived     prometheus.Counter
	BytesSent         prometheus.Counter
	TransferDuration  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imgxfer_connections_active",
			Help: "Current number of open client connections",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgxfer_requests_total",
			Help: "Commands handled, by operation and result",
		}, []string{"op", "result"}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgxfer_bytes_received_total",
			Help: "Payload bytes received from clients",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgxfer_bytes_sent_total",
			Help: "Payload bytes sent to clients",
		}),
		TransferDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imgxfer_transfer_duration_seconds",
			Help:    "Time spent handling one command",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	m.Registry.MustRegister(
		m.ActiveConnections,
		m.Requests,
		m.BytesReceived,
		m.BytesSent,
		m.TransferDuration,
	)
	return m
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
