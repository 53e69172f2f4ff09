package lattice

import (
	"context"
	"sync"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/domain"
)

// Run is a handle on one started acquisition.
type Run struct {
	id   string
	rc   *runtime.RunContext
	done chan struct{}

	mu       sync.Mutex
	snapshot domain.RunRecord
	err      error
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Done is closed when the acquisition ended and every hook was closed.
func (r *Run) Done() <-chan struct{} { return r.done }

// Abort asks the acquisition to stop before the next event.
func (r *Run) Abort() { r.rc.RequestAbort() }

// SetPaused pauses or resumes the acquisition.
func (r *Run) SetPaused(paused bool) { r.rc.SetPaused(paused) }

// Record returns a snapshot of the run's progress.
func (r *Run) Record() domain.RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// Wait blocks until the run ended or ctx is done.
func (r *Run) Wait(ctx context.Context) (*domain.RunRecord, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.snapshot
	return &rec, r.err
}

func (r *Run) finish(rec *domain.RunRecord, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec != nil {
		r.snapshot = *rec
	}
	r.err = err
}

// tracker keeps the snapshot current from the acquisition goroutine.
func (r *Run) tracker() domain.LifecycleHooks {
	update := func(fn func(*domain.RunRecord)) {
		r.mu.Lock()
		defer r.mu.Unlock()
		fn(&r.snapshot)
	}
	return domain.LifecycleHooks{
		OnEventExecuted: func(context.Context, *domain.Event) {
			update(func(rec *domain.RunRecord) { rec.EventsExecuted++ })
		},
		OnEventSuppressed: func(_ context.Context, stage domain.Stage, _ *domain.Event) {
			if stage == domain.BeforeHardware || stage == domain.AfterHardware {
				update(func(rec *domain.RunRecord) { rec.EventsSuppressed++ })
			}
		},
		OnHookError: func(context.Context, domain.Stage, *domain.Event, error) {
			update(func(rec *domain.RunRecord) { rec.HookFailures++ })
		},
		OnRunEnd: func(_ context.Context, rec *domain.RunRecord) {
			update(func(s *domain.RunRecord) { *s = *rec })
		},
	}
}
