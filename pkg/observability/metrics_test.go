package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settings() *domain.Settings {
	return &domain.Settings{
		UseFrames:   true,
		NumFrames:   4,
		UseChannels: true,
		Channels:    []domain.ChannelSpec{{Config: "Cy5", UseChannel: true, ExposureMs: 100}},
	}
}

// dropOdd suppresses odd frames before the hardware moves.
var dropOdd = ports.HookFunc(func(_ context.Context, e *domain.Event) (*domain.Event, error) {
	if frame, ok := e.TimeIndex(); ok && frame%2 == 1 {
		return nil, nil
	}
	return e, nil
})

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	engine := lattice.New(memory.NewHardware(),
		lattice.WithClock(testutils.NewFakeClock(time.Unix(0, 0))),
		lattice.WithLifecycleHooks(metrics.Hooks()),
	)
	engine.AddHook(domain.BeforeHardware, dropOdd)

	rec, err := engine.Acquire(context.Background(), settings())
	require.NoError(t, err)
	require.Equal(t, 2, rec.EventsExecuted)

	expected := `
# HELP lattice_events_suppressed_total Events dropped by a hook, by stage.
# TYPE lattice_events_suppressed_total counter
lattice_events_suppressed_total{stage="before_hardware"} 2
# HELP lattice_runs_total Acquisitions finished, by final status.
# TYPE lattice_runs_total counter
lattice_runs_total{status="completed"} 1
# HELP lattice_acquisition_events_planned Events planned by the current or last acquisition.
# TYPE lattice_acquisition_events_planned gauge
lattice_acquisition_events_planned 4
# HELP lattice_acquisition_active 1 while an acquisition is running.
# TYPE lattice_acquisition_active gauge
lattice_acquisition_active 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"lattice_events_suppressed_total", "lattice_runs_total",
		"lattice_acquisition_events_planned", "lattice_acquisition_active"))

	n, err := testutil.GatherAndCount(reg, "lattice_run_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Handler exposes the same registry.
	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, w.Body.String(), "lattice_events_executed_total 2")
}

func TestMetrics_HookFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	engine := lattice.New(memory.NewHardware(),
		lattice.WithClock(testutils.NewFakeClock(time.Unix(0, 0))),
		lattice.WithLifecycleHooks(metrics.Hooks()),
	)
	engine.AttachRunnable(lattice.Any, lattice.Any, lattice.Any, lattice.Any, func(context.Context, *domain.Event) error {
		return assert.AnError
	})

	_, err := engine.Acquire(context.Background(), settings())
	require.NoError(t, err)

	expected := `
# HELP lattice_hook_failures_total Hook errors and panics, by stage.
# TYPE lattice_hook_failures_total counter
lattice_hook_failures_total{stage="after_hardware"} 4
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "lattice_hook_failures_total"))
}

func TestAuditHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	engine := lattice.New(memory.NewHardware(),
		lattice.WithClock(testutils.NewFakeClock(time.Unix(0, 0))),
		lattice.WithLifecycleHooks(observability.AuditHooks(logger)),
	)
	engine.AddHook(domain.BeforeHardware, dropOdd)

	_, err := engine.Acquire(context.Background(), settings(), lattice.WithRunID("audit-1"))
	require.NoError(t, err)

	counts := map[string]int{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		counts[entry["msg"].(string)]++
		assert.Equal(t, "audit-1", entry["run_id"])
	}
	assert.Equal(t, map[string]int{"run_start": 1, "event_executed": 2, "event_suppressed": 2, "run_end": 1}, counts)
}
