package sequence

import (
	"context"
	"io"

	"github.com/aretw0/lattice/pkg/domain"
)

// Cursor walks the events of one axis for one base event.
// Next returns io.EOF once the axis is exhausted.
type Cursor interface {
	Next(ctx context.Context) (*domain.Event, error)
}

// Enumerator expands a single axis. Expand must not modify base; every
// produced event is a clone.
type Enumerator interface {
	Axis() string
	Expand(ctx context.Context, base *domain.Event) (Cursor, error)
}

// sliceCursor replays a precomputed list of events.
type sliceCursor struct {
	events []*domain.Event
	pos    int
}

func (c *sliceCursor) Next(context.Context) (*domain.Event, error) {
	if c.pos >= len(c.events) {
		return nil, io.EOF
	}
	e := c.events[c.pos]
	c.pos++
	return e, nil
}

// funcCursor produces the i-th event on demand until fn reports false.
type funcCursor struct {
	i  int
	fn func(i int) (*domain.Event, bool)
}

func (c *funcCursor) Next(context.Context) (*domain.Event, error) {
	e, ok := c.fn(c.i)
	if !ok {
		return nil, io.EOF
	}
	c.i++
	return e, nil
}
