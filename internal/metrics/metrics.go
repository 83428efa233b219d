// Package metrics exposes fan-out counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"freshshare/internal/channel"
	"freshshare/internal/notifier"
)

// Metrics implements notifier.Observer and fanout.SelectionObserver.
// A nil *Metrics is a valid no-op observer.
type Metrics struct {
	SendsTotal          *prometheus.CounterVec
	SendDurationSecs    *prometheus.HistogramVec
	DispatchesTotal     *prometheus.CounterVec
	DispatchDurationSec prometheus.Histogram
	SelectionErrors     prometheus.Counter
	ChannelsAttached    prometheus.Gauge

	registry *prometheus.Registry
}

var _ notifier.Observer = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		SendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanout_sends_total",
			Help: "Channel sends by channel and outcome status",
		}, []string{"channel", "status"}),
		SendDurationSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fanout_send_duration_seconds",
			Help:    "Duration of one channel send in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"channel"}),
		DispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanout_dispatches_total",
			Help: "Completed dispatches, by whether they were canceled",
		}, []string{"canceled"}),
		DispatchDurationSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fanout_dispatch_duration_seconds",
			Help:    "Duration of one dispatch in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SelectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fanout_selection_errors_total",
			Help: "Announcements aborted because recipient selection failed",
		}),
		ChannelsAttached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fanout_channels_attached",
			Help: "Number of channels currently attached to the registry",
		}),
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.SendsTotal,
		m.SendDurationSecs,
		m.DispatchesTotal,
		m.DispatchDurationSec,
		m.SelectionErrors,
		m.ChannelsAttached,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveSend(ch string, out channel.Outcome, took time.Duration) {
	if m == nil {
		return
	}
	m.SendsTotal.WithLabelValues(ch, out.Status.String()).Inc()
	m.SendDurationSecs.WithLabelValues(ch).Observe(took.Seconds())
}

func (m *Metrics) ObserveDispatch(r notifier.Report) {
	if m == nil {
		return
	}
	canceled := "false"
	if r.Canceled {
		canceled = "true"
	}
	m.DispatchesTotal.WithLabelValues(canceled).Inc()
	m.DispatchDurationSec.Observe(r.Duration.Seconds())
}

func (m *Metrics) ObserveSelectionError(error) {
	if m == nil {
		return
	}
	m.SelectionErrors.Inc()
}

func (m *Metrics) SetChannelsAttached(n int) {
	if m == nil {
		return
	}
	m.ChannelsAttached.Set(float64(n))
}
