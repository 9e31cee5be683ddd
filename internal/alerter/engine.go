package alerter

import (
	"fmt"

	"github.com/fencewatch/fencewatch/internal/metrics"
	"github.com/fencewatch/fencewatch/internal/types"
	"github.com/rs/zerolog"
)

// Sink receives one human-readable notice per crossing
type Sink interface {
	Notify(message string, kind types.EventType)
}

// Engine routes decoded crossings into the feed and out to the sink
type Engine struct {
	feed    *Feed
	sink    Sink
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewEngine creates a new alert engine
func NewEngine(feed *Feed, sink Sink, m *metrics.Metrics, logger zerolog.Logger) *Engine {
	return &Engine{
		feed:    feed,
		sink:    sink,
		metrics: m,
		logger:  logger.With().Str("component", "alerter").Logger(),
	}
}

// HandleEvent records ev and then sends exactly one notice for it. The
// sink runs after the feed update so a notice never describes an alert
// the feed does not show yet.
func (e *Engine) HandleEvent(ev types.AlertEvent) {
	n := e.feed.Record(ev)
	e.metrics.FeedLength(n)
	e.metrics.AlertEvent(string(ev.EventType))

	e.logger.Info().
		Str("vehicle", ev.Vehicle.VehicleNumber).
		Str("geofence", ev.Geofence.GeofenceName).
		Str("event_type", string(ev.EventType)).
		Time("timestamp", ev.Timestamp).
		Int("feed_length", n).
		Msg("Alert received")

	if e.sink != nil {
		e.sink.Notify(FormatNotice(ev), ev.EventType)
	}
}

// Feed returns the feed the engine writes to
func (e *Engine) Feed() *Feed {
	return e.feed
}

// FormatNotice renders a crossing as an operator notice, e.g.
// "B 1234 XYZ entered Warehouse A".
func FormatNotice(ev types.AlertEvent) string {
	return fmt.Sprintf("%s %s %s", ev.Vehicle.VehicleNumber, ev.EventType.Verb(), ev.Geofence.GeofenceName)
}
