// Package metrics exposes the daemon's Prometheus instruments. All methods
// are safe to call on a nil *Metrics so components can run without them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	streamConnects    prometheus.Counter
	streamDisconnects prometheus.Counter
	decodeErrors      prometheus.Counter
	alertEvents       *prometheus.CounterVec
	streamState       prometheus.Gauge
	feedLength        prometheus.Gauge
	submissions       *prometheus.CounterVec
}

// New registers every instrument on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		streamConnects: f.NewCounter(prometheus.CounterOpts{
			Name: "fencewatch_stream_connects_total",
			Help: "Successful alert stream handshakes",
		}),
		streamDisconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "fencewatch_stream_disconnects_total",
			Help: "Alert stream connection failures and closes that scheduled a retry",
		}),
		decodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "fencewatch_stream_decode_errors_total",
			Help: "Alert stream messages dropped because they could not be decoded",
		}),
		alertEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fencewatch_alert_events_total",
			Help: "Decoded geofence crossings by direction",
		}, []string{"event_type"}),
		streamState: f.NewGauge(prometheus.GaugeOpts{
			Name: "fencewatch_stream_state",
			Help: "Alert stream state (0 idle, 1 connecting, 2 open, 3 closed, 4 reconnecting)",
		}),
		feedLength: f.NewGauge(prometheus.GaugeOpts{
			Name: "fencewatch_alert_feed_length",
			Help: "Number of alerts currently held in the live feed",
		}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fencewatch_geofence_submissions_total",
			Help: "Geofence polygon submissions by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) StreamConnected() {
	if m != nil {
		m.streamConnects.Inc()
	}
}

func (m *Metrics) StreamDisconnected() {
	if m != nil {
		m.streamDisconnects.Inc()
	}
}

func (m *Metrics) DecodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *Metrics) AlertEvent(eventType string) {
	if m != nil {
		m.alertEvents.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) StreamState(state int) {
	if m != nil {
		m.streamState.Set(float64(state))
	}
}

func (m *Metrics) FeedLength(n int) {
	if m != nil {
		m.feedLength.Set(float64(n))
	}
}

// Geofence submission outcomes
const (
	SubmissionAccepted = "accepted"
	SubmissionRejected = "rejected"
	SubmissionInvalid  = "invalid"
)

// Submission counts a geofence submit attempt; outcome is one of
// SubmissionAccepted, SubmissionRejected or SubmissionInvalid.
func (m *Metrics) Submission(outcome string) {
	if m != nil {
		m.submissions.WithLabelValues(outcome).Inc()
	}
}
