package hooks

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// ContinuousFocus suspends continuous autofocus during z-stacks. The stage is
// moved into position first so focus is locked at the right location.
type ContinuousFocus struct {
	hw        ports.Hardware
	geo       geometry
	suspended bool
}

// NewContinuousFocus creates the pair of hooks for one run.
func NewContinuousFocus(hw ports.Hardware, s *domain.Settings) *ContinuousFocus {
	return &ContinuousFocus{hw: hw, geo: newGeometry(s)}
}

// Before returns the hook that suspends continuous focus. It also owns Close.
func (f *ContinuousFocus) Before() ports.Hook { return focusSuspend{f} }

// After returns the hook that resumes continuous focus.
func (f *ContinuousFocus) After() ports.Hook { return focusResume{f} }

type focusSuspend struct{ *ContinuousFocus }

func (h focusSuspend) Run(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	if e.Finished || h.suspended || !h.geo.blockStart(coordsOf(e)) {
		return e, nil
	}
	if x, y, ok := e.XY(); ok {
		if err := h.hw.SetXYPosition(ctx, x, y); err != nil {
			return e, fmt.Errorf("moving stage before suspending focus: %w", err)
		}
	}
	if err := h.hw.EnableContinuousFocus(ctx, false); err != nil {
		return e, fmt.Errorf("suspending continuous focus: %w", err)
	}
	h.suspended = true
	return e, nil
}

// Close re-enables continuous focus unconditionally.
func (h focusSuspend) Close(ctx context.Context) error {
	h.suspended = false
	return h.hw.EnableContinuousFocus(ctx, true)
}

type focusResume struct{ *ContinuousFocus }

func (h focusResume) Run(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	if e.Finished || !h.suspended || !h.geo.blockEnd(coordsOf(e)) {
		return e, nil
	}
	if err := h.hw.EnableContinuousFocus(ctx, true); err != nil {
		return e, fmt.Errorf("resuming continuous focus: %w", err)
	}
	h.suspended = false
	return e, nil
}

func (h focusResume) Close(context.Context) error { return nil }

// Autofocus runs a full autofocus search at the start of a frame.
type Autofocus struct {
	hw   ports.Hardware
	skip int
}

// NewAutofocus creates the hook. It runs on frames where frame % skip == 0;
// skip <= 0 runs on every frame.
func NewAutofocus(hw ports.Hardware, skip int) *Autofocus {
	return &Autofocus{hw: hw, skip: skip}
}

func (a *Autofocus) due(e *domain.Event) bool {
	if c, ok := e.ChannelIndex(); ok && c != 0 {
		return false
	}
	if z, ok := e.ZIndex(); ok && z != 0 {
		return false
	}
	if p, ok := e.PositionIndex(); ok && p != 0 {
		return false
	}
	frame, _ := e.TimeIndex()
	return a.skip <= 0 || frame%a.skip == 0
}

func (a *Autofocus) Run(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	if e.Finished || !a.due(e) {
		return e, nil
	}
	if x, y, ok := e.XY(); ok {
		if err := a.hw.SetXYPosition(ctx, x, y); err != nil {
			return e, fmt.Errorf("moving stage for autofocus: %w", err)
		}
	}
	if err := a.hw.FullFocus(ctx); err != nil {
		return e, fmt.Errorf("autofocus: %w", err)
	}
	return e, nil
}

func (a *Autofocus) Close(context.Context) error { return nil }
