package lattice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/lattice/internal/hooks"
	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/sequence"
	"github.com/google/uuid"
)

// DefaultLockKey is the locker key guarding the hardware.
const DefaultLockKey = "lattice:acquisition"

// Any matches every index of an axis in AttachRunnable.
const Any = hooks.Any

// Engine is the high-level entry point of the library. It turns settings into
// an event stream, wires the built-in and user hooks, and runs one acquisition
// at a time against the hardware.
type Engine struct {
	hw      ports.Hardware
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	store   ports.RunStore
	locker  ports.DistributedLocker
	lockKey string
	lockTTL time.Duration
	clock   runtime.Clock
	poll    time.Duration

	mu        sync.Mutex
	userHooks []hooks.Binding
	runnables []hooks.Runnable
	current   *Run
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(h)
	}
}

// WithStore persists run records. If the store is also a ports.EventJournal,
// executed events are journaled too.
func WithStore(store ports.RunStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker guards the hardware across processes sharing it.
func WithLocker(locker ports.DistributedLocker, key string, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		if key != "" {
			e.lockKey = key
		}
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithClock replaces the wall clock used for pacing.
func WithClock(clock runtime.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithPollInterval sets how often pause and abort are checked while waiting.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.poll = d
	}
}

// New creates an engine driving hw.
func New(hw ports.Hardware, opts ...Option) *Engine {
	e := &Engine{
		hw:      hw,
		lockKey: DefaultLockKey,
		lockTTL: time.Hour,
		clock:   runtime.SystemClock,
		poll:    runtime.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// Events builds the lazy event stream of s without running it.
func (e *Engine) Events(ctx context.Context, s *domain.Settings) (*sequence.Iterator, error) {
	return sequence.Build(ctx, s, e.hw)
}

// TotalEvents returns the number of events s produces.
func (e *Engine) TotalEvents(s *domain.Settings) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	return sequence.TotalEvents(s), nil
}

// AddHook registers hook at stage for every later acquisition. User hooks run
// after the built-in hooks of the same stage.
func (e *Engine) AddHook(stage domain.Stage, hook ports.Hook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userHooks = append(e.userHooks, hooks.Binding{Stage: stage, Name: fmt.Sprintf("user-%d", len(e.userHooks)), Hook: hook})
}

// AttachRunnable runs fn after the hardware reached every event matching the
// indices. Any (-1) matches any index.
func (e *Engine) AttachRunnable(frame, position, channel, slice int, fn func(context.Context, *domain.Event) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runnables = append(e.runnables, hooks.Runnable{Frame: frame, Position: position, Channel: channel, Slice: slice, Fn: fn})
}

// ClearRunnables removes every attached runnable.
func (e *Engine) ClearRunnables() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runnables = nil
}

// RunOption configures one acquisition.
type RunOption func(*runOptions)

type runOptions struct {
	id    string
	hooks domain.LifecycleHooks
}

// WithRunID sets the run identifier instead of a generated UUID.
func WithRunID(id string) RunOption {
	return func(o *runOptions) {
		o.id = id
	}
}

// WithRunHooks observes this acquisition only, after the engine's hooks.
func WithRunHooks(h domain.LifecycleHooks) RunOption {
	return func(o *runOptions) {
		o.hooks = o.hooks.Merge(h)
	}
}

// Start validates s and starts the acquisition in the background.
// It returns domain.ErrAcquisitionRunning if another acquisition is active.
// The run is not tied to ctx's cancellation; use Abort or Acquire.
func (e *Engine) Start(ctx context.Context, s *domain.Settings, opts ...RunOption) (*Run, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ro := runOptions{id: uuid.NewString()}
	for _, opt := range opts {
		opt(&ro)
	}

	run := &Run{
		id:   ro.id,
		rc:   runtime.NewRunContext(ro.id, e.clock),
		done: make(chan struct{}),
	}

	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		return nil, domain.ErrAcquisitionRunning
	}
	e.current = run
	userHooks := slices.Clone(e.userHooks)
	runnables := slices.Clone(e.runnables)
	e.mu.Unlock()

	release := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.current == run {
			e.current = nil
		}
	}

	unlock := ports.UnlockFunc(func(context.Context) error { return nil })
	if e.locker != nil {
		u, ok, err := e.locker.TryLock(ctx, e.lockKey, e.lockTTL)
		if err != nil {
			release()
			return nil, fmt.Errorf("acquiring hardware lock: %w", err)
		}
		if !ok {
			release()
			return nil, domain.ErrAcquisitionRunning
		}
		unlock = u
	}

	acq, err := e.prepare(ctx, s, run, ro.hooks, userHooks, runnables)
	if err != nil {
		if uerr := unlock(ctx); uerr != nil {
			e.logger.Warn("hardware unlock failed", "run_id", run.id, "error", uerr)
		}
		release()
		return nil, err
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(run.done)
		defer release()

		rec, err := acq.Run(runCtx)
		run.finish(rec, err)
		e.save(runCtx, rec)

		if uerr := unlock(runCtx); uerr != nil {
			e.logger.Warn("hardware unlock failed", "run_id", run.id, "error", uerr)
		}
	}()
	return run, nil
}

func (e *Engine) prepare(ctx context.Context, s *domain.Settings, run *Run, runHooks domain.LifecycleHooks, userHooks []hooks.Binding, runnables []hooks.Runnable) (*runtime.Acquisition, error) {
	logger := e.logger.With("run_id", run.id)
	rc := run.rc

	it, err := sequence.Build(ctx, s, e.hw, sequence.WithRunID(run.id), sequence.WithMonitor(rc.Monitor))
	if err != nil {
		return nil, err
	}

	bindings, err := hooks.Defaults(ctx, e.hw, s, rc, runnables)
	if err != nil {
		return nil, fmt.Errorf("preparing hooks: %w", err)
	}

	observer := run.tracker().Merge(e.hooks).Merge(runHooks)
	pipeline := runtime.NewPipeline(runtime.WithLogger(logger), runtime.WithLifecycleHooks(observer))
	hooks.Register(pipeline, bindings)
	hooks.Register(pipeline, userHooks)

	record := &domain.RunRecord{
		ID:            run.id,
		Name:          s.Name,
		OrderMode:     s.AcqOrderMode,
		Status:        domain.RunRunning,
		StartedAt:     rc.StartTime(),
		EventsPlanned: sequence.TotalEvents(s),
	}
	run.snapshot = *record
	e.save(ctx, record)

	opts := []runtime.AcquisitionOption{
		runtime.WithRunLogger(logger),
		runtime.WithObserver(observer),
		runtime.WithPollInterval(e.poll),
	}
	if j, ok := e.store.(ports.EventJournal); ok {
		opts = append(opts, runtime.WithJournal(j))
	}
	return runtime.NewAcquisition(e.hw, it, pipeline, rc, record, opts...), nil
}

func (e *Engine) save(ctx context.Context, rec *domain.RunRecord) {
	if e.store == nil || rec == nil {
		return
	}
	if err := e.store.Save(ctx, rec); err != nil {
		e.logger.WarnContext(ctx, "saving run record failed", "run_id", rec.ID, "error", err)
	}
}

// Acquire runs s to the end. Cancelling ctx aborts the acquisition; Acquire
// still waits for hooks to close before returning.
func (e *Engine) Acquire(ctx context.Context, s *domain.Settings, opts ...RunOption) (*domain.RunRecord, error) {
	run, err := e.Start(ctx, s, opts...)
	if err != nil {
		return nil, err
	}
	select {
	case <-run.Done():
	case <-ctx.Done():
		run.Abort()
	}
	return run.Wait(context.Background())
}

// Current returns the active run, if any.
func (e *Engine) Current() (*Run, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, e.current != nil
}

// Abort asks the active acquisition to stop. It reports whether one was running.
func (e *Engine) Abort() bool {
	run, ok := e.Current()
	if ok {
		run.Abort()
	}
	return ok
}

// SetPaused pauses or resumes the active acquisition between events.
func (e *Engine) SetPaused(paused bool) bool {
	run, ok := e.Current()
	if ok {
		run.rc.SetPaused(paused)
	}
	return ok
}

// IsPaused reports whether the active acquisition is paused.
func (e *Engine) IsPaused() bool {
	run, ok := e.Current()
	return ok && run.rc.Paused()
}

// IsAbortRequested reports whether the active acquisition is being aborted.
func (e *Engine) IsAbortRequested() bool {
	run, ok := e.Current()
	return ok && run.rc.AbortRequested()
}

// IsRunning reports whether an acquisition is active.
func (e *Engine) IsRunning() bool {
	_, ok := e.Current()
	return ok
}

// NextWakeTime returns when the next timed event of the active acquisition
// becomes eligible.
func (e *Engine) NextWakeTime() (time.Time, bool) {
	run, ok := e.Current()
	if !ok {
		return time.Time{}, false
	}
	return run.rc.NextWake()
}
