package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Built-in axis names used as keys in Event.Axes.
const (
	AxisChannel  = "channel"
	AxisZ        = "z"
	AxisTime     = "time"
	AxisPosition = "position"
)

// Event is one atomic unit of hardware work: move to a position, configuration
// and focus, expose, read out.
type Event struct {
	// RunID identifies the acquisition that produced the event.
	RunID string `json:"run_id,omitempty"`

	// Axes maps an axis name to its index. Only active axes have a key.
	Axes map[string]int `json:"axes,omitempty"`

	ZUm        *float64 `json:"z_um,omitempty"`
	XUm        *float64 `json:"x_um,omitempty"`
	YUm        *float64 `json:"y_um,omitempty"`
	ExposureMs *float64 `json:"exposure_ms,omitempty"`

	ConfigGroup  string `json:"config_group,omitempty"`
	ConfigPreset string `json:"config_preset,omitempty"`

	// MinimumStartTime is the earliest start, as an offset from the
	// acquisition start.
	MinimumStartTime *time.Duration `json:"minimum_start_time,omitempty"`

	// ZSequenced and ConfigGroupSequenced mark events whose transitions on
	// that axis are triggered by the hardware as a burst.
	ZSequenced           bool `json:"z_sequenced,omitempty"`
	ConfigGroupSequenced bool `json:"config_group_sequenced,omitempty"`

	// Finished marks the terminal sentinel emitted after the last event.
	Finished bool `json:"finished,omitempty"`
}

// NewEvent creates an empty base event for the given run.
func NewEvent(runID string) *Event {
	return &Event{RunID: runID, Axes: make(map[string]int)}
}

// NewFinishedEvent creates the acquisition-finished sentinel.
func NewFinishedEvent(runID string) *Event {
	return &Event{RunID: runID, Axes: make(map[string]int), Finished: true}
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	out := *e
	out.Axes = maps.Clone(e.Axes)
	if out.Axes == nil {
		out.Axes = make(map[string]int)
	}
	out.ZUm = cloneFloat(e.ZUm)
	out.XUm = cloneFloat(e.XUm)
	out.YUm = cloneFloat(e.YUm)
	out.ExposureMs = cloneFloat(e.ExposureMs)
	if e.MinimumStartTime != nil {
		d := *e.MinimumStartTime
		out.MinimumStartTime = &d
	}
	return &out
}

// Axis returns the index recorded for the named axis.
func (e *Event) Axis(name string) (int, bool) {
	v, ok := e.Axes[name]
	return v, ok
}

// SetAxis records an axis index. Negative indices are rejected.
func (e *Event) SetAxis(name string, index int) {
	if index < 0 {
		panic(fmt.Sprintf("domain: negative index %d for axis %q", index, name))
	}
	if e.Axes == nil {
		e.Axes = make(map[string]int)
	}
	e.Axes[name] = index
}

func (e *Event) ChannelIndex() (int, bool)  { return e.Axis(AxisChannel) }
func (e *Event) ZIndex() (int, bool)        { return e.Axis(AxisZ) }
func (e *Event) TimeIndex() (int, bool)     { return e.Axis(AxisTime) }
func (e *Event) PositionIndex() (int, bool) { return e.Axis(AxisPosition) }

// Z returns the focus target, if any.
func (e *Event) Z() (float64, bool) {
	if e.ZUm == nil {
		return 0, false
	}
	return *e.ZUm, true
}

// SetZ sets the absolute focus target.
func (e *Event) SetZ(z float64) { e.ZUm = &z }

// XY returns the stage target, if both coordinates are set.
func (e *Event) XY() (float64, float64, bool) {
	if e.XUm == nil || e.YUm == nil {
		return 0, 0, false
	}
	return *e.XUm, *e.YUm, true
}

// SetXY sets the stage target.
func (e *Event) SetXY(x, y float64) {
	e.XUm = &x
	e.YUm = &y
}

// SetExposure sets the exposure in milliseconds.
func (e *Event) SetExposure(ms float64) { e.ExposureMs = &ms }

// SetMinimumStartTime sets the earliest start offset.
func (e *Event) SetMinimumStartTime(d time.Duration) { e.MinimumStartTime = &d }

// Indices returns the axis indices in the given axis order, with -1 for
// axes the event does not carry.
func (e *Event) Indices(order ...string) []int {
	out := make([]int, len(order))
	for i, name := range order {
		v, ok := e.Axes[name]
		if !ok {
			v = -1
		}
		out[i] = v
	}
	return out
}

func (e *Event) String() string {
	if e.Finished {
		return "finished"
	}
	var b strings.Builder
	keys := slices.Sorted(maps.Keys(e.Axes))
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%d", k, e.Axes[k])
	}
	if e.ConfigPreset != "" {
		fmt.Fprintf(&b, " preset=%s", e.ConfigPreset)
	}
	if e.ZUm != nil {
		fmt.Fprintf(&b, " z=%.3f", *e.ZUm)
	}
	if x, y, ok := e.XY(); ok {
		fmt.Fprintf(&b, " xy=(%.3f,%.3f)", x, y)
	}
	if e.MinimumStartTime != nil {
		fmt.Fprintf(&b, " t>=%s", *e.MinimumStartTime)
	}
	return strings.TrimSpace(b.String())
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
