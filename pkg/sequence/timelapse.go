package sequence

import (
	"context"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
)

// Timelapse expands the time axis. Frame 0 is always produced; later frames
// stop at NumFrames.
type Timelapse struct {
	NumFrames int
	Interval  time.Duration
}

func (t *Timelapse) Axis() string { return domain.AxisTime }

func (t *Timelapse) Expand(_ context.Context, base *domain.Event) (Cursor, error) {
	return &funcCursor{fn: func(frame int) (*domain.Event, bool) {
		if frame > 0 && frame >= t.NumFrames {
			return nil, false
		}
		e := base.Clone()
		e.SetAxis(domain.AxisTime, frame)
		e.SetMinimumStartTime(time.Duration(frame) * t.Interval)
		return e, true
	}}, nil
}
