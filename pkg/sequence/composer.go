package sequence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Iterator is a single-pass stream of events over the cartesian expansion of
// the enabled axes.
type Iterator struct {
	base    *domain.Event
	enums   []Enumerator
	stack   []Cursor
	monitor func(*domain.Event)

	started bool
	done    bool
	peeked  *domain.Event
	err     error
}

// Option configures the Iterator.
type Option func(*buildOptions)

type buildOptions struct {
	runID   string
	monitor func(*domain.Event)
}

// WithRunID stamps every event with the run identifier.
func WithRunID(id string) Option {
	return func(o *buildOptions) {
		o.runID = id
	}
}

// WithMonitor registers a callback invoked once per produced event.
// It must not modify the event.
func WithMonitor(fn func(*domain.Event)) Option {
	return func(o *buildOptions) {
		o.monitor = fn
	}
}

// NewIterator composes enumerators, outermost first, over base.
func NewIterator(base *domain.Event, enums []Enumerator, monitor func(*domain.Event)) *Iterator {
	return &Iterator{base: base, enums: enums, monitor: monitor}
}

// Build validates the settings and composes the enumerators of the enabled
// axes in the nesting order of the settings' order mode.
//
// focus is read at build time for relative z-stacks and lazily by the channel
// axis for per-channel offsets. It may be nil when neither applies.
func Build(ctx context.Context, s *domain.Settings, focus ports.FocusReader, opts ...Option) (*Iterator, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	order, err := AxisOrder(s.AcqOrderMode)
	if err != nil {
		return nil, err
	}

	used := s.UsedChannels()
	var enums []Enumerator
	for _, axis := range order {
		switch axis {
		case domain.AxisPosition:
			if list := s.PositionList(); list != nil {
				enums = append(enums, &Positions{List: list})
			}
		case domain.AxisTime:
			if s.UseFrames {
				enums = append(enums, &Timelapse{
					NumFrames: s.NumFrames,
					Interval:  time.Duration(s.IntervalMs * float64(time.Millisecond)),
				})
			}
		case domain.AxisChannel:
			if s.UseChannels {
				enums = append(enums, &Channels{
					Specs:  used,
					Group:  s.ChannelGroup,
					Middle: s.MiddleSlice(),
					DeferZ: s.UseSlices && outside(order, domain.AxisChannel, domain.AxisZ),
					Focus:  focus,
				})
			}
		case domain.AxisZ:
			if s.UseSlices {
				origin := s.SliceZBottomUm
				if s.RelativeZSlice {
					if focus == nil {
						return nil, fmt.Errorf("relative z-stack needs a focus reader")
					}
					z, err := focus.Position(ctx)
					if err != nil {
						return nil, fmt.Errorf("reading focus origin: %w", err)
					}
					origin += z
				}
				zs := &ZStack{
					Start:    0,
					Stop:     s.SliceCount(),
					StepUm:   s.SliceStepUm(),
					OriginUm: origin,
					Middle:   s.MiddleSlice(),
				}
				if s.UseChannels {
					zs.Channels = used
				}
				enums = append(enums, zs)
			}
		}
	}

	return NewIterator(domain.NewEvent(o.runID), enums, o.monitor), nil
}

// HasNext reports whether Next would produce an event. It may pull, and
// therefore materialize, the next event; the monitor still only sees it
// when Next returns it.
func (it *Iterator) HasNext(ctx context.Context) (bool, error) {
	if it.peeked != nil {
		return true, nil
	}
	e, err := it.advance(ctx)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	it.peeked = e
	return true, nil
}

// Next returns the next event, or io.EOF when the stream is exhausted.
// An enumerator error ends the stream and is returned on every later call.
func (it *Iterator) Next(ctx context.Context) (*domain.Event, error) {
	if e := it.peeked; e != nil {
		it.peeked = nil
		return it.emit(e), nil
	}
	e, err := it.advance(ctx)
	if err != nil {
		return nil, err
	}
	return it.emit(e), nil
}

func (it *Iterator) advance(ctx context.Context) (*domain.Event, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.done {
		return nil, io.EOF
	}

	if !it.started {
		it.started = true
		if len(it.enums) == 0 {
			it.done = true
			return it.base.Clone(), nil
		}
		if err := it.push(ctx, it.base); err != nil {
			return nil, err
		}
	}

	for len(it.stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		top := it.stack[len(it.stack)-1]
		e, err := top.Next(ctx)
		if errors.Is(err, io.EOF) {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		if err != nil {
			return nil, it.fail(err)
		}
		if len(it.stack) == len(it.enums) {
			return e, nil
		}
		if err := it.push(ctx, e); err != nil {
			return nil, err
		}
	}

	it.done = true
	return nil, io.EOF
}

func (it *Iterator) push(ctx context.Context, base *domain.Event) error {
	enum := it.enums[len(it.stack)]
	c, err := enum.Expand(ctx, base)
	if err != nil {
		return it.fail(fmt.Errorf("expanding %s axis: %w", enum.Axis(), err))
	}
	it.stack = append(it.stack, c)
	return nil
}

func (it *Iterator) fail(err error) error {
	it.err = err
	it.stack = nil
	return err
}

func (it *Iterator) emit(e *domain.Event) *domain.Event {
	if it.monitor != nil {
		it.monitor(e)
	}
	return e
}

// Collect drains the iterator.
func Collect(ctx context.Context, it *Iterator) ([]*domain.Event, error) {
	var out []*domain.Event
	for {
		e, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}
