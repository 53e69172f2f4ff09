package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// DefaultPollInterval is how often pause and abort are checked while waiting.
const DefaultPollInterval = 5 * time.Millisecond

var errAborted = errors.New("acquisition aborted")

// finishStages are the stages the finished sentinel passes through.
var finishStages = []domain.Stage{domain.BeforeHardware, domain.AfterHardware, domain.AcquisitionFinished}

// Acquisition is the run loop of one acquisition. It pulls events from the
// source, paces them, runs them through the hook pipeline and commands the
// hardware. It runs on a single goroutine; only the RunContext flags may be
// touched from outside.
type Acquisition struct {
	hw       ports.Hardware
	source   ports.EventSource
	pipeline *Pipeline
	rc       *RunContext
	record   *domain.RunRecord

	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	journal ports.EventJournal
	poll    time.Duration

	exposure *float64
	preset   string
	seq      int
}

// AcquisitionOption configures the Acquisition.
type AcquisitionOption func(*Acquisition)

// WithRunLogger sets the structured logger of the run loop.
func WithRunLogger(logger *slog.Logger) AcquisitionOption {
	return func(a *Acquisition) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithObserver registers observability callbacks for the run.
func WithObserver(hooks domain.LifecycleHooks) AcquisitionOption {
	return func(a *Acquisition) {
		a.hooks = hooks
	}
}

// WithJournal records every executed event.
func WithJournal(j ports.EventJournal) AcquisitionOption {
	return func(a *Acquisition) {
		a.journal = j
	}
}

// WithPollInterval sets how often pause and abort are checked while waiting.
func WithPollInterval(d time.Duration) AcquisitionOption {
	return func(a *Acquisition) {
		if d > 0 {
			a.poll = d
		}
	}
}

// NewAcquisition wires a run loop. record is updated in place.
func NewAcquisition(hw ports.Hardware, source ports.EventSource, pipeline *Pipeline, rc *RunContext, record *domain.RunRecord, opts ...AcquisitionOption) *Acquisition {
	a := &Acquisition{
		hw:       hw,
		source:   source,
		pipeline: pipeline,
		rc:       rc,
		record:   record,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		poll:     DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the acquisition to completion or abort.
//
// Whatever the outcome, the finished sentinel is passed through the pipeline
// and every hook is closed before Run returns. The returned error is non-nil
// only when the run failed; an abort is not an error.
func (a *Acquisition) Run(ctx context.Context) (rec *domain.RunRecord, err error) {
	a.record.ID = a.rc.ID
	a.record.Status = domain.RunRunning
	a.record.StartedAt = a.rc.StartTime()
	if a.hooks.OnRunStart != nil {
		a.hooks.OnRunStart(ctx, a.record)
	}
	a.logger.InfoContext(ctx, "acquisition started", "run_id", a.rc.ID, "events_planned", a.record.EventsPlanned)

	cleanup := context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("acquisition panicked: %v", r)
			a.record.Status = domain.RunFailed
		}
		a.finish(cleanup)

		a.record.FinishedAt = a.rc.Clock().Now()
		a.record.HookFailures = a.pipeline.Failures()
		if err != nil {
			a.record.Error = err.Error()
		}
		a.logger.InfoContext(cleanup, "acquisition ended",
			"run_id", a.rc.ID,
			"status", a.record.Status,
			"events_executed", a.record.EventsExecuted,
			"events_suppressed", a.record.EventsSuppressed,
			"hook_failures", a.record.HookFailures,
		)
		if a.hooks.OnRunEnd != nil {
			a.hooks.OnRunEnd(cleanup, a.record)
		}
		rec = a.record
	}()

	err = a.loop(ctx)
	return a.record, err
}

func (a *Acquisition) loop(ctx context.Context) error {
	for {
		if a.stopRequested(ctx) {
			a.record.Status = domain.RunAborted
			return nil
		}

		e, err := a.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			a.record.Status = domain.RunCompleted
			return nil
		}
		if err != nil {
			if a.stopRequested(ctx) {
				a.record.Status = domain.RunAborted
				return nil
			}
			a.record.Status = domain.RunFailed
			return fmt.Errorf("generating event: %w", err)
		}
		if a.hooks.OnEventGenerated != nil {
			a.hooks.OnEventGenerated(ctx, e)
		}

		err = a.execute(ctx, e)
		if errors.Is(err, errAborted) {
			a.record.Status = domain.RunAborted
			return nil
		}
		if err != nil {
			a.record.Status = domain.RunFailed
			return err
		}
	}
}

func (a *Acquisition) execute(ctx context.Context, e *domain.Event) error {
	if !a.waitWhilePaused(ctx) || !a.waitForStart(ctx, e) {
		return errAborted
	}

	if e = a.pipeline.Run(ctx, domain.BeforeHardware, e); e == nil {
		a.record.EventsSuppressed++
		return nil
	}
	// Before-hardware hooks may have moved the start time.
	if !a.waitForStart(ctx, e) {
		return errAborted
	}

	if err := a.updateHardware(ctx, e); err != nil {
		return fmt.Errorf("updating hardware for %s: %w", e, err)
	}

	if e = a.pipeline.Run(ctx, domain.AfterHardware, e); e == nil {
		a.record.EventsSuppressed++
		return nil
	}

	if cam, ok := a.hw.(ports.Camera); ok {
		if err := cam.Snap(ctx); err != nil {
			return fmt.Errorf("exposing %s: %w", e, err)
		}
	}
	// The exposure happened: after-exposure hooks can no longer undo it.
	a.record.EventsExecuted++
	if a.hooks.OnEventExecuted != nil {
		a.hooks.OnEventExecuted(ctx, e)
	}
	if a.journal != nil {
		if err := a.journal.Append(ctx, a.rc.ID, a.seq, e); err != nil {
			a.logger.WarnContext(ctx, "journal append failed", "run_id", a.rc.ID, "seq", a.seq, "error", err)
		}
	}
	a.seq++

	a.pipeline.Run(ctx, domain.AfterExposure, e)
	return nil
}

// updateHardware commands focus, then the XY stage, then exposure and
// configuration. Focus and stage are always commanded since hooks may move
// them between events; exposure and configuration only when they changed.
func (a *Acquisition) updateHardware(ctx context.Context, e *domain.Event) error {
	if z, ok := e.Z(); ok {
		if err := a.hw.SetPosition(ctx, z); err != nil {
			return fmt.Errorf("moving focus: %w", err)
		}
	}
	if x, y, ok := e.XY(); ok {
		if err := a.hw.SetXYPosition(ctx, x, y); err != nil {
			return fmt.Errorf("moving stage: %w", err)
		}
	}
	if e.ExposureMs != nil && (a.exposure == nil || *a.exposure != *e.ExposureMs) {
		if cam, ok := a.hw.(ports.Camera); ok {
			if err := cam.SetExposure(ctx, *e.ExposureMs); err != nil {
				return fmt.Errorf("setting exposure: %w", err)
			}
		}
		ms := *e.ExposureMs
		a.exposure = &ms
	}
	if e.ConfigPreset != "" {
		key := e.ConfigGroup + "\x00" + e.ConfigPreset
		if key != a.preset {
			if err := a.hw.SetConfig(ctx, e.ConfigGroup, e.ConfigPreset); err != nil {
				return fmt.Errorf("applying %s/%s: %w", e.ConfigGroup, e.ConfigPreset, err)
			}
			a.preset = key
		}
	}
	return nil
}

func (a *Acquisition) finish(ctx context.Context) {
	defer a.pipeline.Close(ctx)

	e := domain.NewFinishedEvent(a.rc.ID)
	for _, stage := range finishStages {
		if e = a.pipeline.Run(ctx, stage, e); e == nil {
			return
		}
	}
}

func (a *Acquisition) stopRequested(ctx context.Context) bool {
	return a.rc.AbortRequested() || ctx.Err() != nil
}

func (a *Acquisition) waitWhilePaused(ctx context.Context) bool {
	clock := a.rc.Clock()
	for a.rc.Paused() {
		if a.stopRequested(ctx) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-clock.After(a.poll):
		}
	}
	return !a.stopRequested(ctx)
}

func (a *Acquisition) waitForStart(ctx context.Context, e *domain.Event) bool {
	if e.MinimumStartTime == nil {
		return !a.stopRequested(ctx)
	}
	deadline := a.rc.Deadline(*e.MinimumStartTime)
	clock := a.rc.Clock()
	for {
		if a.stopRequested(ctx) {
			return false
		}
		now := clock.Now()
		if !now.Before(deadline) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-clock.After(min(deadline.Sub(now), a.poll)):
		}
	}
}
