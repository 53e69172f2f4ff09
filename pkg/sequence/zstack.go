package sequence

import (
	"context"
	"io"

	"github.com/aretw0/lattice/pkg/domain"
)

// ZStack expands the slice axis over indices [Start, Stop).
//
// The stop bound is exclusive. Callers holding an inclusive slice count pass
// Stop = count.
type ZStack struct {
	Start    int
	Stop     int
	StepUm   float64
	OriginUm float64

	// Channels are the used channels, indexed like the channel axis. When the
	// base already carries a channel that does not z-stack, only Middle is
	// produced for it.
	Channels []domain.ChannelSpec
	Middle   int
}

func (z *ZStack) Axis() string { return domain.AxisZ }

func (z *ZStack) Expand(_ context.Context, base *domain.Event) (Cursor, error) {
	start, stop := z.Start, z.Stop
	if ch, ok := base.ChannelIndex(); ok && ch < len(z.Channels) && !z.Channels[ch].DoZStack {
		start, stop = z.Middle, z.Middle+1
	}
	return &zCursor{stack: z, base: base, i: start, stop: stop}, nil
}

type zCursor struct {
	stack *ZStack
	base  *domain.Event
	i     int
	stop  int
}

func (c *zCursor) Next(context.Context) (*domain.Event, error) {
	if c.i >= c.stop {
		return nil, io.EOF
	}
	e := c.base.Clone()
	z := c.stack.OriginUm + float64(c.i)*c.stack.StepUm
	if prev, ok := e.Z(); ok {
		z += prev
	}
	e.SetZ(z)
	e.SetAxis(domain.AxisZ, c.i)
	c.i++
	return e, nil
}
