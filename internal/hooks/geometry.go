package hooks

import "github.com/aretw0/lattice/pkg/domain"

// geometry answers where bursts of events start and end for one set of
// settings. A block is the whole channel by slice group of one time point and
// position; a stack is the slices of one channel; a sweep is the channels of
// one slice.
type geometry struct {
	channels     []domain.ChannelSpec
	slices       bool
	lastSlice    int
	middle       int
	channelOuter bool
}

func newGeometry(s *domain.Settings) geometry {
	g := geometry{
		slices:       s.UseSlices,
		lastSlice:    s.SliceCount() - 1,
		middle:       s.MiddleSlice(),
		channelOuter: s.AcqOrderMode.ChannelFirst(),
	}
	if s.UseChannels {
		g.channels = s.UsedChannels()
	}
	return g
}

func (g geometry) stacks(c int) bool {
	return !g.slices || c >= len(g.channels) || g.channels[c].DoZStack
}

// stackRange returns the first and last slice acquired for channel c.
func (g geometry) stackRange(c int) (int, int) {
	if g.channels == nil || g.stacks(c) {
		return 0, g.lastSlice
	}
	return g.middle, g.middle
}

// sweep returns the first and last channel acquired at frame and slice.
func (g geometry) sweep(frame, slice int) (first, last int, ok bool) {
	first, last = -1, -1
	for i, c := range g.channels {
		if !c.AcquiresFrame(frame) {
			continue
		}
		if g.slices && !c.DoZStack && slice != g.middle {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last, first >= 0
}

// blockSlices returns the first and last slice with any acquisition at frame
// when slices are the outer axis.
func (g geometry) blockSlices(frame int) (int, int) {
	for _, c := range g.channels {
		if c.AcquiresFrame(frame) && c.DoZStack {
			return 0, g.lastSlice
		}
	}
	return g.middle, g.middle
}

type coords struct {
	frame, channel, slice int
	hasChannel, hasSlice  bool
	zSequenced            bool
}

func coordsOf(e *domain.Event) coords {
	var c coords
	c.frame, _ = e.TimeIndex()
	c.channel, c.hasChannel = e.ChannelIndex()
	c.slice, c.hasSlice = e.ZIndex()
	c.zSequenced = e.ZSequenced
	return c
}

// stackStart and stackEnd bound the z-stack of the event's channel.
func (g geometry) stackStart(c coords) bool {
	if !c.hasSlice || c.zSequenced {
		return true
	}
	first, _ := g.stackRange(c.channel)
	return c.slice == first
}

func (g geometry) stackEnd(c coords) bool {
	if !c.hasSlice || c.zSequenced {
		return true
	}
	_, last := g.stackRange(c.channel)
	return c.slice == last
}

// sweepStart and sweepEnd bound the channel sweep of the event's slice.
func (g geometry) sweepStart(c coords) bool {
	if !c.hasChannel {
		return true
	}
	first, _, ok := g.sweep(c.frame, c.slice)
	return ok && c.channel == first
}

func (g geometry) sweepEnd(c coords) bool {
	if !c.hasChannel {
		return true
	}
	_, last, ok := g.sweep(c.frame, c.slice)
	return ok && c.channel == last
}

// blockStart reports whether e is the first event of its channel by slice block.
func (g geometry) blockStart(c coords) bool {
	switch {
	case !c.hasChannel:
		return g.stackStart(c)
	case !c.hasSlice:
		return g.sweepStart(c)
	case g.channelOuter:
		first, _, ok := g.framePresence(c.frame)
		return ok && c.channel == first && g.stackStart(c)
	default:
		firstSlice, _ := g.blockSlices(c.frame)
		if !c.zSequenced && c.slice != firstSlice {
			return false
		}
		first, _, ok := g.sweep(c.frame, c.slice)
		return ok && c.channel == first
	}
}

// blockEnd reports whether e is the last event of its channel by slice block.
func (g geometry) blockEnd(c coords) bool {
	switch {
	case !c.hasChannel:
		return g.stackEnd(c)
	case !c.hasSlice:
		return g.sweepEnd(c)
	case g.channelOuter:
		_, last, ok := g.framePresence(c.frame)
		return ok && c.channel == last && g.stackEnd(c)
	default:
		_, lastSlice := g.blockSlices(c.frame)
		if !c.zSequenced && c.slice != lastSlice {
			return false
		}
		_, last, ok := g.sweep(c.frame, c.slice)
		return ok && c.channel == last
	}
}

// framePresence returns the first and last channel acquired at frame,
// whatever the slice.
func (g geometry) framePresence(frame int) (first, last int, ok bool) {
	first, last = -1, -1
	for i, c := range g.channels {
		if !c.AcquiresFrame(frame) {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last, first >= 0
}
