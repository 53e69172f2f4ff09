package hooks

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
)

// Any matches every index of an axis.
const Any = -1

// Runnable is a user-attached side effect matched by axis indices.
type Runnable struct {
	Frame    int
	Position int
	Channel  int
	Slice    int
	Fn       func(ctx context.Context, e *domain.Event) error
}

// Matches reports whether e is selected. An axis matches when the runnable
// does not constrain it, the event lacks it, or the indices are equal.
func (r Runnable) Matches(e *domain.Event) bool {
	return axisMatches(e, domain.AxisTime, r.Frame) &&
		axisMatches(e, domain.AxisPosition, r.Position) &&
		axisMatches(e, domain.AxisChannel, r.Channel) &&
		axisMatches(e, domain.AxisZ, r.Slice)
}

func axisMatches(e *domain.Event, axis string, want int) bool {
	if want < 0 {
		return true
	}
	got, ok := e.Axis(axis)
	return !ok || got == want
}

// Run calls Fn for matching image events. The finished sentinel never matches.
func (r Runnable) Run(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	if e.Finished || r.Fn == nil || !r.Matches(e) {
		return e, nil
	}
	if err := r.Fn(ctx, e); err != nil {
		return e, fmt.Errorf("runnable (t=%d p=%d c=%d z=%d): %w", r.Frame, r.Position, r.Channel, r.Slice, err)
	}
	return e, nil
}

func (r Runnable) Close(context.Context) error { return nil }
