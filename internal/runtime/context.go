package runtime

import (
	"sync/atomic"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
)

// Clock abstracts wall time so waits can be simulated.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// RunContext is the mutable state of one acquisition. It is created when the
// acquisition starts and dropped when it ends; hooks that need per-run state
// receive it explicitly.
//
// The flags may be set from any goroutine. Everything else is owned by the
// acquisition goroutine.
type RunContext struct {
	ID    string
	clock Clock
	start time.Time

	nextWake atomic.Int64
	paused   atomic.Bool
	abort    atomic.Bool
}

// NewRunContext starts the run clock for acquisition id.
func NewRunContext(id string, clock Clock) *RunContext {
	if clock == nil {
		clock = SystemClock
	}
	return &RunContext{ID: id, clock: clock, start: clock.Now()}
}

func (rc *RunContext) Clock() Clock { return rc.clock }

// StartTime is the time the acquisition started.
func (rc *RunContext) StartTime() time.Time { return rc.start }

// Elapsed returns the time since the acquisition started.
func (rc *RunContext) Elapsed() time.Duration { return rc.clock.Now().Sub(rc.start) }

// Deadline converts an event start offset to an absolute time.
func (rc *RunContext) Deadline(offset time.Duration) time.Time { return rc.start.Add(offset) }

// SetNextWake records when the next timed event becomes eligible, as an
// offset from the start.
func (rc *RunContext) SetNextWake(offset time.Duration) {
	rc.nextWake.Store(rc.start.Add(offset).UnixNano())
}

// NextWake returns the eligibility time of the most recent timed event.
func (rc *RunContext) NextWake() (time.Time, bool) {
	ns := rc.nextWake.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

// Monitor updates the next wake time from a produced event.
func (rc *RunContext) Monitor(e *domain.Event) {
	if e.MinimumStartTime != nil {
		rc.SetNextWake(*e.MinimumStartTime)
	}
}

func (rc *RunContext) SetPaused(paused bool) { rc.paused.Store(paused) }
func (rc *RunContext) Paused() bool          { return rc.paused.Load() }

// RequestAbort asks the run loop to stop before the next event.
func (rc *RunContext) RequestAbort()        { rc.abort.Store(true) }
func (rc *RunContext) AbortRequested() bool { return rc.abort.Load() }
