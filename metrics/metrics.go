// Package metrics collects Prometheus metrics for the research coordinator.
//
// Counters cover connection lifecycle (connects, reconnect attempts),
// message flow (messages applied, protocol errors), and fallback polling.
// A gauge tracks whether the live channel is currently connected.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the coordinator metrics
type Collector struct {
	connects       prometheus.Counter
	reconnects     prometheus.Counter
	messages       prometheus.Counter
	protocolErrors prometheus.Counter
	polls          prometheus.Counter
	connected      prometheus.Gauge
}

// NewCollector creates a collector and registers its metrics on the
// given registerer. A nil registerer falls back to the process-wide
// default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_channel_connects_total",
			Help: "Total number of successful live channel opens",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_channel_reconnect_attempts_total",
			Help: "Total number of reconnect attempts after a channel loss",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_messages_applied_total",
			Help: "Total number of protocol messages applied to job state",
		}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_protocol_errors_total",
			Help: "Total number of malformed or unknown protocol messages",
		}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_fallback_polls_total",
			Help: "Total number of fallback status polls",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "research_channel_connected",
			Help: "Whether the live channel is currently connected (0 or 1)",
		}),
	}

	reg.MustRegister(c.connects, c.reconnects, c.messages, c.protocolErrors, c.polls, c.connected)
	return c
}

// RecordConnect records a successful channel open.
// All Record methods are safe on a nil receiver so callers can run
// without metrics wired.
func (c *Collector) RecordConnect() {
	if c == nil {
		return
	}
	c.connects.Inc()
	c.connected.Set(1)
}

// RecordDisconnect records the channel going down
func (c *Collector) RecordDisconnect() {
	if c == nil {
		return
	}
	c.connected.Set(0)
}

// RecordReconnectAttempt records one reconnect attempt
func (c *Collector) RecordReconnectAttempt() {
	if c == nil {
		return
	}
	c.reconnects.Inc()
}

// RecordMessage records a protocol message applied to job state
func (c *Collector) RecordMessage() {
	if c == nil {
		return
	}
	c.messages.Inc()
}

// RecordProtocolError records a malformed or unknown message
func (c *Collector) RecordProtocolError() {
	if c == nil {
		return
	}
	c.protocolErrors.Inc()
}

// RecordPoll records one fallback status poll
func (c *Collector) RecordPoll() {
	if c == nil {
		return
	}
	c.polls.Inc()
}

// Handler returns the HTTP handler exposing the default registry in
// Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
