package sequence

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Channels expands the channel axis over the used channels in list order.
type Channels struct {
	Specs []domain.ChannelSpec
	Group string

	// Middle is the slice index at which channels that do not z-stack are
	// acquired when the slice axis is outside the channel axis.
	Middle int

	// DeferZ records the channel offset as a relative z for a slice axis
	// nested inside this one, which adds its absolute position later.
	DeferZ bool

	// Focus is read once per expansion when an offset needs an origin.
	Focus ports.FocusReader
}

func (c *Channels) Axis() string { return domain.AxisChannel }

func (c *Channels) hasOffsets() bool {
	for _, s := range c.Specs {
		if s.ZOffsetUm != 0 {
			return true
		}
	}
	return false
}

func (c *Channels) Expand(ctx context.Context, base *domain.Event) (Cursor, error) {
	frame, _ := base.TimeIndex()
	slice, hasSlice := base.ZIndex()

	origin, hasOrigin := base.Z()
	if !hasOrigin {
		switch {
		case c.DeferZ:
			origin, hasOrigin = 0, true
		case c.hasOffsets():
			if c.Focus == nil {
				return nil, fmt.Errorf("channel z offset needs a focus reader")
			}
			z, err := c.Focus.Position(ctx)
			if err != nil {
				return nil, fmt.Errorf("reading focus for channel offsets: %w", err)
			}
			origin, hasOrigin = z, true
		}
	}

	var out []*domain.Event
	for i, spec := range c.Specs {
		if !spec.AcquiresFrame(frame) {
			continue
		}
		if hasSlice && !spec.DoZStack && slice != c.Middle {
			continue
		}
		e := base.Clone()
		e.SetAxis(domain.AxisChannel, i)
		e.ConfigGroup = c.Group
		e.ConfigPreset = spec.Config
		e.SetExposure(spec.ExposureMs)
		if hasOrigin {
			e.SetZ(origin + spec.ZOffsetUm)
		}
		out = append(out, e)
	}
	return &sliceCursor{events: out}, nil
}
