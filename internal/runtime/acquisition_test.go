package runtime_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoChannelTimelapse() *domain.Settings {
	return &domain.Settings{
		UseChannels:  true,
		ChannelGroup: "Channel",
		Channels: []domain.ChannelSpec{
			{Config: "DAPI", UseChannel: true, ExposureMs: 10},
			{Config: "FITC", UseChannel: true, ExposureMs: 20},
		},
		UseFrames:       true,
		NumFrames:       3,
		IntervalMs:      1000,
		UsePositionList: true,
		Positions:       []domain.StagePosition{{XUm: 100, YUm: 200}},
		AcqOrderMode:    domain.TimePosChannelSlice,
	}
}

type harness struct {
	hw       *memory.Hardware
	clock    *testutils.FakeClock
	rc       *runtime.RunContext
	pipeline *runtime.Pipeline
	record   *domain.RunRecord
	store    *memory.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := testutils.NewFakeClock(epoch)
	return &harness{
		hw:       memory.NewHardware(),
		clock:    clock,
		rc:       runtime.NewRunContext("run-1", clock),
		pipeline: runtime.NewPipeline(),
		record:   &domain.RunRecord{},
		store:    memory.NewStore(),
	}
}

func (h *harness) run(t *testing.T, ctx context.Context, source ports.EventSource) (*domain.RunRecord, error) {
	t.Helper()
	acq := runtime.NewAcquisition(h.hw, source, h.pipeline, h.rc, h.record, runtime.WithJournal(h.store))
	return acq.Run(ctx)
}

func (h *harness) build(t *testing.T, s *domain.Settings) ports.EventSource {
	t.Helper()
	it, err := sequence.Build(context.Background(), s, h.hw, sequence.WithRunID(h.rc.ID), sequence.WithMonitor(h.rc.Monitor))
	require.NoError(t, err)
	return it
}

func TestAcquisition_Completes(t *testing.T) {
	h := newHarness(t)
	s := twoChannelTimelapse()

	var stages []string
	closes := 0
	for _, stage := range domain.Stages {
		h.pipeline.Add(stage, stage.String(), &observer{fn: func(e *domain.Event) {
			if e.Finished {
				stages = append(stages, stage.String())
			}
		}, closes: &closes})
	}

	rec, err := h.run(t, context.Background(), h.build(t, s))
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, rec.Status)
	assert.Equal(t, "run-1", rec.ID)
	assert.Equal(t, 6, rec.EventsExecuted)
	assert.Equal(t, 6, h.hw.Snaps())
	assert.Equal(t, []string{"before_hardware", "after_hardware", "acquisition_finished"}, stages,
		"the finished sentinel skips the exposure stage")
	assert.Equal(t, 4, closes)
	assert.True(t, rec.FinishedAt.Sub(rec.StartedAt) >= 2*time.Second, "frames are paced by the interval")

	events, err := h.store.Events(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, events, 6)
}

func TestAcquisition_HardwareUpdateOrder(t *testing.T) {
	h := newHarness(t)
	s := twoChannelTimelapse()
	s.UseFrames = false
	s.Channels[1].ZOffsetUm = 2

	_, err := h.run(t, context.Background(), h.build(t, s))
	require.NoError(t, err)

	var ops []string
	for _, c := range h.hw.Commands() {
		ops = append(ops, c.String())
	}
	assert.Equal(t, []string{
		"Position",
		"SetPosition[0]", "SetXYPosition[100 200]", "SetExposure[10]", "SetConfig[Channel DAPI]", "Snap",
		"SetPosition[2]", "SetXYPosition[100 200]", "SetExposure[20]", "SetConfig[Channel FITC]", "Snap",
	}, ops)
}

func TestAcquisition_SkipsUnchangedConfiguration(t *testing.T) {
	h := newHarness(t)
	s := twoChannelTimelapse()
	s.Channels = s.Channels[:1]

	_, err := h.run(t, context.Background(), h.build(t, s))
	require.NoError(t, err)
	assert.Equal(t, 1, h.hw.Count("SetConfig"))
	assert.Equal(t, 1, h.hw.Count("SetExposure"))
	assert.Equal(t, 3, h.hw.Count("Snap"))
}

func TestAcquisition_AbortStillClosesHooks(t *testing.T) {
	h := newHarness(t)
	closes := 0
	finished := false
	h.pipeline.Add(domain.AfterExposure, "abort-after-two", &observer{fn: func(e *domain.Event) {
		if h.hw.Snaps() == 2 {
			h.rc.RequestAbort()
		}
	}, closes: &closes})
	h.pipeline.Add(domain.AcquisitionFinished, "finish", &observer{fn: func(e *domain.Event) {
		finished = e.Finished
	}, closes: &closes})

	rec, err := h.run(t, context.Background(), h.build(t, twoChannelTimelapse()))
	require.NoError(t, err, "abort is not an error")

	assert.Equal(t, domain.RunAborted, rec.Status)
	assert.Equal(t, 2, rec.EventsExecuted)
	assert.True(t, finished)
	assert.Equal(t, 2, closes)
}

func TestAcquisition_AbortDuringWait(t *testing.T) {
	h := newHarness(t)
	h.clock.OnSleep(func(total time.Duration) {
		if total >= 500*time.Millisecond {
			h.rc.RequestAbort()
		}
	})

	rec, err := h.run(t, context.Background(), h.build(t, twoChannelTimelapse()))
	require.NoError(t, err)
	assert.Equal(t, domain.RunAborted, rec.Status)
	assert.Equal(t, 2, rec.EventsExecuted, "only frame 0 ran")
	assert.Less(t, h.clock.Slept(), time.Second)
}

func TestAcquisition_ContextCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	closes := 0
	h.pipeline.Add(domain.AfterHardware, "cancel", &observer{fn: func(*domain.Event) { cancel() }, closes: &closes})

	rec, err := h.run(t, ctx, h.build(t, twoChannelTimelapse()))
	require.NoError(t, err)
	assert.Equal(t, domain.RunAborted, rec.Status)
	assert.Equal(t, 1, closes)
}

func TestAcquisition_WaitsWhilePaused(t *testing.T) {
	h := newHarness(t)
	h.rc.SetPaused(true)
	h.clock.OnSleep(func(total time.Duration) {
		if total >= 50*time.Millisecond {
			h.rc.SetPaused(false)
		}
	})
	s := twoChannelTimelapse()
	s.UseFrames = false

	rec, err := h.run(t, context.Background(), h.build(t, s))
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, rec.Status)
	assert.GreaterOrEqual(t, h.clock.Slept(), 50*time.Millisecond)
}

func TestAcquisition_SuppressedEventsAreCounted(t *testing.T) {
	h := newHarness(t)
	h.pipeline.Add(domain.BeforeHardware, "skip-fitc", ports.HookFunc(func(_ context.Context, e *domain.Event) (*domain.Event, error) {
		if e.ConfigPreset == "FITC" {
			return nil, nil
		}
		return e, nil
	}))

	rec, err := h.run(t, context.Background(), h.build(t, twoChannelTimelapse()))
	require.NoError(t, err)
	assert.Equal(t, 3, rec.EventsExecuted)
	assert.Equal(t, 3, rec.EventsSuppressed)
	assert.Equal(t, "DAPI", h.hw.Config("Channel"), "FITC was never applied")
}

func TestAcquisition_AfterExposureSuppressionKeepsExecutedEvent(t *testing.T) {
	h := newHarness(t)
	h.pipeline.Add(domain.AfterExposure, "drop-all", ports.HookFunc(func(context.Context, *domain.Event) (*domain.Event, error) {
		return nil, nil
	}))

	executed := 0
	observer := domain.LifecycleHooks{
		OnEventExecuted: func(context.Context, *domain.Event) { executed++ },
	}
	acq := runtime.NewAcquisition(h.hw, h.build(t, twoChannelTimelapse()), h.pipeline, h.rc, h.record,
		runtime.WithJournal(h.store), runtime.WithObserver(observer))
	rec, err := acq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, rec.EventsExecuted)
	assert.Equal(t, 0, rec.EventsSuppressed)
	assert.Equal(t, 6, executed)
	events, err := h.store.Events(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, events, 6)
}

type failingSource struct {
	n   int
	err error
}

func (s *failingSource) Next(context.Context) (*domain.Event, error) {
	if s.n == 0 {
		return nil, s.err
	}
	s.n--
	return domain.NewEvent("run-1"), nil
}

func TestAcquisition_SourceFailureFailsRun(t *testing.T) {
	h := newHarness(t)
	closes := 0
	h.pipeline.Add(domain.AfterHardware, "obs", &observer{closes: &closes})

	boom := errors.New("focus drive lost")
	rec, err := h.run(t, context.Background(), &failingSource{n: 2, err: boom})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Contains(t, rec.Error, "focus drive lost")
	assert.Equal(t, 2, rec.EventsExecuted)
	assert.Equal(t, 1, closes)
}

func TestAcquisition_HardwareFailureFailsRun(t *testing.T) {
	h := newHarness(t)
	h.hw.FailOn("SetXYPosition", errors.New("stage limit"))
	closes := 0
	h.pipeline.Add(domain.BeforeHardware, "obs", &observer{closes: &closes})

	rec, err := h.run(t, context.Background(), h.build(t, twoChannelTimelapse()))
	assert.ErrorContains(t, err, "stage limit")
	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Zero(t, rec.EventsExecuted)
	assert.Equal(t, 1, closes)
}

func TestAcquisition_HookFailuresAreRecorded(t *testing.T) {
	h := newHarness(t)
	h.pipeline.Add(domain.AfterHardware, "broken", ports.HookFunc(func(context.Context, *domain.Event) (*domain.Event, error) {
		return nil, errors.New("always")
	}))

	rec, err := h.run(t, context.Background(), &failingSource{n: 3, err: io.EOF})
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, rec.Status)
	assert.Equal(t, 3, rec.EventsExecuted, "failing hooks do not stop the acquisition")
	assert.Equal(t, 4, rec.HookFailures, "three events and the finished sentinel")
}

// observer is a pass-through hook that counts closes.
type observer struct {
	fn     func(*domain.Event)
	closes *int
}

func (o *observer) Run(_ context.Context, e *domain.Event) (*domain.Event, error) {
	if o.fn != nil {
		o.fn(e)
	}
	return e, nil
}

func (o *observer) Close(context.Context) error {
	*o.closes++
	return nil
}
