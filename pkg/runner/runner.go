package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/domain"
)

// Runner drives one acquisition at a time to completion, reporting progress
// through its Handler.
type Runner struct {
	// Handler is the strategy for output. If nil, a TextHandler on stdout is used.
	Handler OutputHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// Signals makes SIGINT/SIGTERM abort the acquisition.
	Signals bool

	// InterruptSource aborts the acquisition when it fires.
	InterruptSource <-chan struct{}

	// RunID fixes the run identifier; empty means generated.
	RunID string
}

// NewRunner creates a Runner with signal handling enabled.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Signals: true,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts s on engine and waits for the end of the acquisition.
// Cancelling ctx, a signal or the interrupt source request an abort; Run
// still waits until every hook was closed.
func (r *Runner) Run(ctx context.Context, engine *lattice.Engine, s *domain.Settings) (*domain.RunRecord, error) {
	// 1. Setup Phase
	handler := r.resolveHandler()
	if r.Logger == nil {
		r.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	runOpts := []lattice.RunOption{lattice.WithRunHooks(lifecycleOf(handler, r.Logger))}
	if r.RunID != "" {
		runOpts = append(runOpts, lattice.WithRunID(r.RunID))
	}

	run, err := engine.Start(ctx, s, runOpts...)
	if err != nil {
		return nil, fmt.Errorf("starting acquisition: %w", err)
	}
	r.Logger.Debug("acquisition started", "run_id", run.ID())

	var signalDone <-chan struct{}
	var signals *SignalManager
	if r.Signals {
		signals = NewSignalManager(context.Background())
		defer signals.Stop()
		signalDone = signals.Context().Done()
	}

	// 2. Wait Loop
	aborting := false
	abort := func(reason string) {
		if aborting {
			_ = handler.SystemOutput(ctx, "abort already requested, closing hooks")
			return
		}
		aborting = true
		r.Logger.Info("aborting acquisition", "run_id", run.ID(), "reason", reason)
		_ = handler.SystemOutput(ctx, fmt.Sprintf("%s: aborting acquisition", reason))
		run.Abort()
	}

	ctxDone := ctx.Done()
	interrupts := r.InterruptSource
	for {
		select {
		case <-run.Done():
			return run.Wait(context.Background())
		case <-ctxDone:
			ctxDone = nil
			abort("cancelled")
		case <-signalDone:
			abort("interrupt")
			// Re-arm signals so a second Ctrl+C is reported, not fatal.
			signals.Reset()
			signalDone = signals.Context().Done()
		case <-interrupts:
			interrupts = nil
			abort("interrupt")
		}
	}
}

// resolveHandler ensures a valid OutputHandler is set.
func (r *Runner) resolveHandler() OutputHandler {
	if r.Handler != nil {
		return r.Handler
	}
	r.Handler = NewTextHandler(nil)
	return r.Handler
}
