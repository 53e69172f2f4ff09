package observability

import (
	"context"
	"net/http"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lattice"

// Metrics records acquisition progress in a Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	events       prometheus.Counter
	suppressed   *prometheus.CounterVec
	hookFailures *prometheus.CounterVec
	active       prometheus.Gauge
	planned      prometheus.Gauge
	executed     prometheus.Gauge
	runDuration  prometheus.Histogram

	mu sync.Mutex
}

// NewMetrics registers the acquisition metrics on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Acquisitions finished, by final status.",
		}, []string{"status"}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_executed_total",
			Help:      "Events for which the camera exposed.",
		}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_suppressed_total",
			Help:      "Events dropped by a hook, by stage.",
		}, []string{"stage"}),
		hookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_failures_total",
			Help:      "Hook errors and panics, by stage.",
		}, []string{"stage"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "acquisition_active",
			Help:      "1 while an acquisition is running.",
		}),
		planned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "acquisition_events_planned",
			Help:      "Events planned by the current or last acquisition.",
		}),
		executed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "acquisition_events_executed",
			Help:      "Events executed by the current or last acquisition.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time from start to the end of hook cleanup.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
	reg.MustRegister(m.runs, m.events, m.suppressed, m.hookFailures, m.active, m.planned, m.executed, m.runDuration)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns the lifecycle hooks feeding the metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(_ context.Context, rec *domain.RunRecord) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.active.Set(1)
			m.planned.Set(float64(rec.EventsPlanned))
			m.executed.Set(0)
		},
		OnEventExecuted: func(context.Context, *domain.Event) {
			m.events.Inc()
			m.executed.Inc()
		},
		OnEventSuppressed: func(_ context.Context, stage domain.Stage, _ *domain.Event) {
			m.suppressed.WithLabelValues(stage.String()).Inc()
		},
		OnHookError: func(_ context.Context, stage domain.Stage, _ *domain.Event, _ error) {
			m.hookFailures.WithLabelValues(stage.String()).Inc()
		},
		OnRunEnd: func(_ context.Context, rec *domain.RunRecord) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.active.Set(0)
			m.runs.WithLabelValues(string(rec.Status)).Inc()
			if !rec.FinishedAt.IsZero() {
				m.runDuration.Observe(rec.FinishedAt.Sub(rec.StartedAt).Seconds())
			}
		},
	}
}
