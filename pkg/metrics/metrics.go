// Package metrics exposes the controller's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the fleet controller's collectors on a private
// registry, so tests and side-by-side controllers never collide.
type Metrics struct {
	registry *prometheus.Registry

	// Broadcast path.
	BroadcastsTotal   prometheus.Counter
	RoundsTotal       prometheus.Counter
	FreshSetpoints    prometheus.Counter
	EncodeFailures    prometheus.Counter
	LinkWrites        prometheus.Counter
	LinkWriteFailures prometheus.Counter

	// Inbound path.
	ResponsesTotal     *prometheus.CounterVec
	MalformedResponses prometheus.Counter

	// Fleet state.
	DevicesOnline    prometheus.Gauge
	LinksOpen        prometheus.Gauge
	SetpointsPending prometheus.Gauge

	// Control feed.
	FeedReloads       prometheus.Counter
	FeedParseFailures prometheus.Counter
}

// New creates the collector set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "focfleet_broadcasts_total",
			Help: "Total number of group setpoint packets broadcast",
		}),
		RoundsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "focfleet_rounds_total",
			Help: "Total number of completed distribution rounds",
		}),
		FreshSetpoints: factory.NewCounter(prometheus.CounterOpts{
			Name: "focfleet_fresh_setpoints_total",
			Help: "Total number of queued setpoints popped into packets",
		}),
		EncodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "focfleet_encode_failures_total",
			Help: "Total number of group packets dropped at encode",
		}),
		LinkWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "focfleet_link_writes_total",
			Help: "Total number of per-link packet writes attempted",
		}),
		LinkWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "focfleet_link_write_failures_total",
			Help: "Total number of per-link packet writes that failed",
		}),

		ResponsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "focfleet_responses_total",
			Help: "Total number of well-formed device responses by kind",
		}, []string{"kind"}),
		MalformedResponses: factory.NewCounter(prometheus.CounterOpts{
			Name: "focfleet_responses_malformed_total",
			Help: "Total number of inbound notifications dropped at parse",
		}),

		DevicesOnline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "focfleet_devices_online",
			Help: "Number of devices currently considered online",
		}),
		LinksOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "focfleet_links_open",
			Help: "Number of open device links",
		}),
		SetpointsPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "focfleet_setpoints_pending",
			Help: "Queued setpoints not yet broadcast",
		}),

		FeedReloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "focfleet_feed_reloads_total",
			Help: "Total number of control feed reloads applied",
		}),
		FeedParseFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "focfleet_feed_parse_failures_total",
			Help: "Total number of control feed reloads rejected at parse",
		}),
	}
}

// Handler returns an HTTP handler serving the collector set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
