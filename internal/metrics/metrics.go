package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all monitoring counters, shared by every camera monitor.
type Metrics struct {
	// Classification outcome counters
	ImagesProcessed atomic.Uint64
	Recognized      atomic.Uint64
	UnknownFaces    atomic.Uint64
	NoFace          atomic.Uint64
	ServiceErrors   atomic.Uint64
	Timeouts        atomic.Uint64

	// Loop behavior counters
	Heartbeats     atomic.Uint64
	PublishErrors  atomic.Uint64
	LoopRecoveries atomic.Uint64

	// Latency tracking
	ClassifyLatencyMs atomic.Uint64 // last classification latency in ms

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "facemonitor_images_processed_total",
			Help: "Total images submitted for classification",
		},
		func() float64 { return float64(m.ImagesProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "facemonitor_recognized_total",
			Help: "Total images with at least one recognized subject",
		},
		func() float64 { return float64(m.Recognized.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "facemonitor_unknown_faces_total",
			Help: "Total images with only unknown faces",
		},
		func() float64 { return float64(m.UnknownFaces.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "facemonitor_no_face_total",
			Help: "Total images where no face was found",
		},
		func() float64 { return float64(m.NoFace.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "facemonitor_service_errors_total",
			Help: "Total recognition service errors",
		},
		func() float64 { return float64(m.ServiceErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "facemonitor_timeouts_total",
			Help: "Total recognition request timeouts",
		},
		func() float64 { return float64(m.Timeouts.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "facemonitor_heartbeats_total",
			Help: "Total idle heartbeat status publishes",
		},
		func() float64 { return float64(m.Heartbeats.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "facemonitor_publish_errors_total",
			Help: "Total status or history publish failures",
		},
		func() float64 { return float64(m.PublishErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "facemonitor_loop_recoveries_total",
			Help: "Total monitor loop iterations recovered from a panic",
		},
		func() float64 { return float64(m.LoopRecoveries.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "facemonitor_classify_latency_ms",
			Help: "Latency of the most recent classification in milliseconds",
		},
		func() float64 { return float64(m.ClassifyLatencyMs.Load()) },
	))
}

// UpdateClassifyLatency records the latency of the last classification.
func (m *Metrics) UpdateClassifyLatency(duration time.Duration) {
	m.ClassifyLatencyMs.Store(uint64(duration.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
