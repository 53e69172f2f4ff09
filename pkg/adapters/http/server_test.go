package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lapseJSON = `{
	"name": "lapse",
	"use_frames": true,
	"num_frames": 3,
	"use_channels": true,
	"channel_group": "Channel",
	"channels": [{"config": "DAPI", "use_channel": true, "exposure_ms": 5}],
	"acq_order_mode": "TIME_POS_SLICE_CHANNEL"
}`

type fixture struct {
	engine  *lattice.Engine
	store   *memory.Store
	streams *StreamManager
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewStore(), streams: NewStreamManager()}
	f.engine = lattice.New(memory.NewHardware(),
		lattice.WithClock(testutils.NewFakeClock(time.Unix(0, 0))),
		lattice.WithStore(f.store),
		lattice.WithLifecycleHooks(f.streams.Hooks()),
	)
	f.handler = NewHandler(f.engine,
		WithStore(f.store),
		WithStreams(f.streams),
		WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		})),
	)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

// hold blocks the first event of the next acquisition until release is closed.
func (f *fixture) hold() (started <-chan struct{}, release chan struct{}) {
	s := make(chan struct{})
	release = make(chan struct{})
	var once atomic.Bool
	f.engine.AddHook(domain.BeforeHardware, ports.HookFunc(func(_ context.Context, e *domain.Event) (*domain.Event, error) {
		if once.CompareAndSwap(false, true) {
			close(s)
			<-release
		}
		return e, nil
	}))
	return s, release
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t)

	w := f.do("GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	info := decode[map[string]any](t, f.do("GET", "/info", ""))
	assert.Equal(t, "lattice-http", info["app"])
	assert.Equal(t, false, info["running"])

	w = f.do("GET", "/metrics", "")
	assert.Equal(t, "metrics", w.Body.String())
}

func TestPlanCount(t *testing.T) {
	f := newFixture(t)

	w := f.do("POST", "/plan/count", lapseJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[CountResponse](t, w)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, "TIME_POS_SLICE_CHANNEL", resp.Summary.OrderMode)
}

func TestPlanCount_InvalidSettings(t *testing.T) {
	f := newFixture(t)

	w := f.do("POST", "/plan/count", `{"use_slices": true, "slice_z_top_um": 5, "slice_z_step_um": 0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "slice_z_step_um", decode[ErrorResponse](t, w).Field)

	w = f.do("POST", "/plan/count", `{"acq_order_mode": "SIDEWAYS"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do("POST", "/plan/count", `{"num_frame": 3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown fields are rejected")
}

func TestPlanEvents(t *testing.T) {
	f := newFixture(t)

	w := f.do("POST", "/plan/events?limit=2", lapseJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[PlanResponse](t, w)
	assert.Equal(t, 3, resp.Total)
	assert.True(t, resp.Truncated)
	require.Len(t, resp.Events, 2)
	frame, _ := resp.Events[1].TimeIndex()
	assert.Equal(t, 1, frame)

	resp = decode[PlanResponse](t, f.do("POST", "/plan/events", lapseJSON))
	assert.False(t, resp.Truncated)
	assert.Len(t, resp.Events, 3)

	w = f.do("POST", "/plan/events?limit=zero", lapseJSON)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAcquisitionLifecycle(t *testing.T) {
	f := newFixture(t)
	started, release := f.hold()

	// 1. Start
	w := f.do("POST", "/acquisitions?id=run-1", lapseJSON)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "/acquisitions/run-1", w.Header().Get("Location"))
	<-started

	// 2. Only one at a time
	w = f.do("POST", "/acquisitions", lapseJSON)
	assert.Equal(t, http.StatusConflict, w.Code)

	// 3. Status, pause, resume
	status := decode[StatusResponse](t, f.do("GET", "/acquisitions/current", ""))
	assert.Equal(t, "run-1", status.Record.ID)
	assert.Equal(t, 3, status.Record.EventsPlanned)

	assert.Equal(t, http.StatusOK, f.do("POST", "/acquisitions/current/pause", "").Code)
	assert.True(t, decode[StatusResponse](t, f.do("GET", "/acquisitions/current", "")).Paused)
	assert.Equal(t, http.StatusOK, f.do("POST", "/acquisitions/current/resume", "").Code)
	assert.False(t, decode[StatusResponse](t, f.do("GET", "/acquisitions/current", "")).Paused)

	rec := decode[domain.RunRecord](t, f.do("GET", "/acquisitions/run-1", ""))
	assert.Equal(t, domain.RunRunning, rec.Status)

	// 4. Abort
	assert.Equal(t, http.StatusAccepted, f.do("POST", "/acquisitions/current/abort", "").Code)
	close(release)
	run, ok := f.engine.Current()
	if ok {
		_, err := run.Wait(context.Background())
		require.NoError(t, err)
	}

	// 5. History
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/acquisitions/current", "").Code)
	rec = decode[domain.RunRecord](t, f.do("GET", "/acquisitions/run-1", ""))
	assert.Equal(t, domain.RunAborted, rec.Status)

	list := decode[[]domain.RunRecord](t, f.do("GET", "/acquisitions", ""))
	require.Len(t, list, 1)
	assert.Equal(t, "run-1", list[0].ID)

	events := decode[[]domain.Event](t, f.do("GET", "/acquisitions/run-1/events", ""))
	assert.Len(t, events, rec.EventsExecuted)
}

func TestNoAcquisition(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do("POST", "/acquisitions/current/abort", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do("POST", "/acquisitions/current/pause", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/acquisitions/nope", "").Code)
}

func TestStreamCurrent(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/acquisitions/current/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	// Subscribed once the ping arrived.
	post, err := http.Post(srv.URL+"/acquisitions", "application/json", strings.NewReader(lapseJSON))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusAccepted, post.StatusCode)

	var types []string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		payload, ok := strings.CutPrefix(strings.TrimSpace(line), "data: ")
		if !ok || payload == "connected" {
			continue
		}
		var msg streamMessage
		require.NoError(t, json.Unmarshal([]byte(payload), &msg))
		types = append(types, msg.Type)
		if msg.Type == "run_ended" {
			break
		}
	}
	assert.Equal(t, []string{"run_started", "event_executed", "event_executed", "event_executed", "run_ended"}, types)
}
