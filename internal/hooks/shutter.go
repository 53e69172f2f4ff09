package hooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Shutter keeps the shutter open across a burst of slices, channels or both,
// instead of letting auto-shutter cycle it for every exposure. Hardware
// sequenced events are left to the hardware.
type Shutter struct {
	hw       ports.Hardware
	geo      geometry
	slices   bool
	channels bool
	held     bool
	auto     bool
}

// NewShutter creates the pair of hooks for one run.
func NewShutter(hw ports.Hardware, s *domain.Settings) *Shutter {
	return &Shutter{
		hw:       hw,
		geo:      newGeometry(s),
		slices:   s.KeepShutterOpenSlices && s.UseSlices,
		channels: s.KeepShutterOpenChannels && s.UseChannels,
	}
}

// Enabled reports whether any keep-open setting applies.
func (s *Shutter) Enabled() bool { return s.slices || s.channels }

// Open returns the after-hardware hook that opens the shutter. It also owns Close.
func (s *Shutter) Open() ports.Hook { return shutterOpen{s} }

// CloseHook returns the after-exposure hook that closes the shutter.
func (s *Shutter) CloseHook() ports.Hook { return shutterClose{s} }

func (s *Shutter) burstStart(c coords) bool {
	switch {
	case s.slices && s.channels:
		return s.geo.blockStart(c)
	case s.slices && s.geo.channelOuter:
		return s.geo.stackStart(c)
	case s.channels && !s.geo.channelOuter:
		return s.geo.sweepStart(c)
	default:
		return s.geo.blockStart(c)
	}
}

func (s *Shutter) burstEnd(c coords) bool {
	switch {
	case s.slices && s.channels:
		return s.geo.blockEnd(c)
	case s.slices && s.geo.channelOuter:
		return s.geo.stackEnd(c)
	case s.channels && !s.geo.channelOuter:
		return s.geo.sweepEnd(c)
	default:
		return s.geo.blockEnd(c)
	}
}

func (s *Shutter) release(ctx context.Context) error {
	if !s.held {
		return nil
	}
	s.held = false
	return errors.Join(
		wrap("closing shutter", s.hw.SetShutterOpen(ctx, false)),
		wrap("restoring auto-shutter", s.hw.SetAutoShutter(ctx, s.auto)),
	)
}

func wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func sequenced(e *domain.Event) bool { return e.ZSequenced || e.ConfigGroupSequenced }

type shutterOpen struct{ *Shutter }

func (h shutterOpen) Run(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	if e.Finished || h.held || sequenced(e) || !h.burstStart(coordsOf(e)) {
		return e, nil
	}
	auto, err := h.hw.AutoShutter(ctx)
	if err != nil {
		return e, fmt.Errorf("reading auto-shutter: %w", err)
	}
	h.auto = auto
	if err := h.hw.SetAutoShutter(ctx, false); err != nil {
		return e, fmt.Errorf("disabling auto-shutter: %w", err)
	}
	h.held = true
	if err := h.hw.SetShutterOpen(ctx, true); err != nil {
		return e, fmt.Errorf("opening shutter: %w", err)
	}
	return e, nil
}

// Close releases a shutter still held when the run ends.
func (h shutterOpen) Close(ctx context.Context) error { return h.release(ctx) }

type shutterClose struct{ *Shutter }

func (h shutterClose) Run(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	if e.Finished || !h.held || sequenced(e) || !h.burstEnd(coordsOf(e)) {
		return e, nil
	}
	return e, h.release(ctx)
}

func (h shutterClose) Close(context.Context) error { return nil }
