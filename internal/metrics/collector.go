// Package metrics exposes Prometheus instrumentation for the SOCKS5 proxy.
// It is purely observational: nothing in the socks5 package consults these
// metrics to make a decision, per §6 of the specification.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "socks5d"
	subsystem = "proxy"
)

const (
	labelMethod    = "method"
	labelResult    = "result"
	labelOutcome   = "outcome"
	labelCode      = "code"
	labelDirection = "direction"
)

// Collector holds all proxy Prometheus metrics.
type Collector struct {
	// SessionsActive tracks the number of sessions currently between
	// Accepted and Closed.
	SessionsActive prometheus.Gauge

	// SessionsTotal counts completed sessions by terminal outcome
	// (relayed, auth_failed, protocol_error, upstream_unreachable).
	SessionsTotal *prometheus.CounterVec

	// AuthAttempts counts authentication attempts by selected method and
	// result (ok, denied, no_acceptable_method).
	AuthAttempts *prometheus.CounterVec

	// ReplyCodes counts each SOCKS5 reply code emitted.
	ReplyCodes *prometheus.CounterVec

	// RelayBytes counts bytes copied per relay direction (upstream,
	// downstream).
	RelayBytes *prometheus.CounterVec
}

// NewCollector creates a Collector with all metrics registered against reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.SessionsActive,
		c.SessionsTotal,
		c.AuthAttempts,
		c.ReplyCodes,
		c.RelayBytes,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_active",
			Help:      "Number of SOCKS5 sessions currently in progress.",
		}),

		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_total",
			Help:      "Total completed SOCKS5 sessions by terminal outcome.",
		}, []string{labelOutcome}),

		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "auth_attempts_total",
			Help:      "Total authentication attempts by selected method and result.",
		}, []string{labelMethod, labelResult}),

		ReplyCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reply_codes_total",
			Help:      "Total SOCKS5 reply codes emitted.",
		}, []string{labelCode}),

		RelayBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relay_bytes_total",
			Help:      "Total bytes copied during the relay phase, by direction.",
		}, []string{labelDirection}),
	}
}

// SessionStarted increments the active-sessions gauge. Safe to call on a
// nil *Collector (no-op), so callers need not special-case metrics being
// disabled.
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.SessionsActive.Inc()
}

// SessionEnded decrements the active-sessions gauge and records the
// terminal outcome.
func (c *Collector) SessionEnded(outcome string) {
	if c == nil {
		return
	}
	c.SessionsActive.Dec()
	c.SessionsTotal.WithLabelValues(outcome).Inc()
}

// AuthAttempt records the result of a method selection or credential check.
func (c *Collector) AuthAttempt(method, result string) {
	if c == nil {
		return
	}
	c.AuthAttempts.WithLabelValues(method, result).Inc()
}

// ReplySent records an emitted SOCKS5 reply code.
func (c *Collector) ReplySent(code string) {
	if c == nil {
		return
	}
	c.ReplyCodes.WithLabelValues(code).Inc()
}

// RelayBytesCopied adds n bytes to the named direction's counter
// ("upstream" or "downstream").
func (c *Collector) RelayBytesCopied(direction string, n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.RelayBytes.WithLabelValues(direction).Add(float64(n))
}
