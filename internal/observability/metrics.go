package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Values of the "outcome" label on request and export counters.
const (
	OutcomeOK           = "ok"
	OutcomeNetworkError = "network_error"
	OutcomeDecodeError  = "decode_error"
	OutcomeUnavailable  = "unavailable"
	OutcomeNotFound     = "not_found"
)

// OverlayCollector bundles the Prometheus metrics for analytics requests,
// overlay transitions, sessions and exports.
type OverlayCollector struct {
	gatherer prometheus.Gatherer

	AnalyticsRequests   *prometheus.CounterVec
	AnalyticsDurations  prometheus.Histogram
	SupersededResponses prometheus.Counter
	OverlayTransitions  *prometheus.CounterVec
	InvalidGeometry     prometheus.Counter
	ActiveSessions      prometheus.Gauge
	Exports             *prometheus.CounterVec
}

// NewOverlayCollector registers the metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewOverlayCollector(reg prometheus.Registerer) (*OverlayCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_requests_total",
		Help: "Completed NDVI analytics requests, labeled by outcome.",
	}, []string{"outcome"}), "analytics_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analytics_request_duration_seconds",
		Help:    "NDVI analytics round-trip latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}), "analytics_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	superseded, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_responses_superseded_total",
		Help: "Analytics responses discarded because a newer request was issued.",
	}), "analytics_responses_superseded_total")
	if err != nil {
		return nil, err
	}

	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_transitions_total",
		Help: "Overlay state machine transitions, labeled by source state, target state and event.",
	}, []string{"from", "to", "event"}), "overlay_transitions_total")
	if err != nil {
		return nil, err
	}

	invalid, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "surface_invalid_geometry_total",
		Help: "Drawn shapes rejected before submission.",
	}), "surface_invalid_geometry_total")
	if err != nil {
		return nil, err
	}

	sessions, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "web_sessions_active",
		Help: "Currently connected map sessions.",
	}), "web_sessions_active")
	if err != nil {
		return nil, err
	}

	exports, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "export_requests_total",
		Help: "Chart image export requests, labeled by outcome.",
	}, []string{"outcome"}), "export_requests_total")
	if err != nil {
		return nil, err
	}

	return &OverlayCollector{
		gatherer:            gatherer,
		AnalyticsRequests:   requests,
		AnalyticsDurations:  durations,
		SupersededResponses: superseded,
		OverlayTransitions:  transitions,
		InvalidGeometry:     invalid,
		ActiveSessions:      sessions,
		Exports:             exports,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *OverlayCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveRequest records a completed analytics request.
func (c *OverlayCollector) ObserveRequest(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.AnalyticsRequests.WithLabelValues(outcome).Inc()
	c.AnalyticsDurations.Observe(d.Seconds())
}

// IncSuperseded counts a discarded stale response.
func (c *OverlayCollector) IncSuperseded() {
	if c == nil {
		return
	}
	c.SupersededResponses.Inc()
}

// ObserveTransition counts an overlay transition.
func (c *OverlayCollector) ObserveTransition(from, to, event string) {
	if c == nil {
		return
	}
	c.OverlayTransitions.WithLabelValues(from, to, event).Inc()
}

// IncInvalidGeometry counts a rejected shape.
func (c *OverlayCollector) IncInvalidGeometry() {
	if c == nil {
		return
	}
	c.InvalidGeometry.Inc()
}

// SessionOpened and SessionClosed track connected sessions.
func (c *OverlayCollector) SessionOpened() {
	if c == nil {
		return
	}
	c.ActiveSessions.Inc()
}

func (c *OverlayCollector) SessionClosed() {
	if c == nil {
		return
	}
	c.ActiveSessions.Dec()
}

// IncExport counts an export request.
func (c *OverlayCollector) IncExport(outcome string) {
	if c == nil {
		return
	}
	c.Exports.WithLabelValues(outcome).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
