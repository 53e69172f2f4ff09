package hooks

import (
	"context"
	"time"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/domain"
)

// TimelapsePosition shifts the time-lapse of every position after the first
// so its frames are timed from when the acquisition reached that position.
type TimelapsePosition struct {
	rc      *runtime.RunContext
	last    int
	origin  time.Duration
	shifted bool
}

// NewTimelapsePosition creates the hook for one run.
func NewTimelapsePosition(rc *runtime.RunContext) *TimelapsePosition {
	return &TimelapsePosition{rc: rc}
}

func (h *TimelapsePosition) Run(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	pos, ok := e.PositionIndex()
	if e.Finished || !ok {
		return e, nil
	}
	if pos != h.last {
		h.origin = h.rc.Elapsed()
		h.last = pos
		h.shifted = true
	}
	if h.shifted && e.MinimumStartTime != nil {
		e.SetMinimumStartTime(h.origin + *e.MinimumStartTime)
		h.rc.SetNextWake(*e.MinimumStartTime)
	}
	return e, nil
}

func (h *TimelapsePosition) Close(context.Context) error { return nil }
