package domain

import (
	"fmt"
	"math"
	"strings"
)

// OrderMode is the nesting precedence among the four axes.
// Values follow the historical ordinal order of acquisition settings files.
type OrderMode int

const (
	TimePosSliceChannel OrderMode = iota
	TimePosChannelSlice
	PosTimeSliceChannel
	PosTimeChannelSlice
)

var orderModeNames = map[OrderMode]string{
	TimePosSliceChannel: "TIME_POS_SLICE_CHANNEL",
	TimePosChannelSlice: "TIME_POS_CHANNEL_SLICE",
	PosTimeSliceChannel: "POS_TIME_SLICE_CHANNEL",
	PosTimeChannelSlice: "POS_TIME_CHANNEL_SLICE",
}

// OrderModes lists every supported order mode.
var OrderModes = []OrderMode{TimePosSliceChannel, TimePosChannelSlice, PosTimeSliceChannel, PosTimeChannelSlice}

func (m OrderMode) String() string {
	if s, ok := orderModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("OrderMode(%d)", int(m))
}

// Valid reports whether m is one of the four known modes.
func (m OrderMode) Valid() bool {
	_, ok := orderModeNames[m]
	return ok
}

// PositionFirst reports whether the position axis is outside the time axis.
func (m OrderMode) PositionFirst() bool {
	return m == PosTimeSliceChannel || m == PosTimeChannelSlice
}

// ChannelFirst reports whether the channel axis is outside the slice axis,
// i.e. each channel runs its own complete z-stack.
func (m OrderMode) ChannelFirst() bool {
	return m == TimePosChannelSlice || m == PosTimeChannelSlice
}

// ParseOrderMode accepts the canonical names (case-insensitive, '-' or '_')
// and the numeric ordinals.
func ParseOrderMode(s string) (OrderMode, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for m, name := range orderModeNames {
		if name == norm || fmt.Sprint(int(m)) == norm {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOrderMode, s)
}

func (m OrderMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOrderMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *OrderMode) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ChannelSpec describes one channel of the acquisition.
type ChannelSpec struct {
	Config     string  `yaml:"config" json:"config"`
	UseChannel bool    `yaml:"use_channel" json:"use_channel"`
	ExposureMs float64 `yaml:"exposure_ms" json:"exposure_ms"`
	ZOffsetUm  float64 `yaml:"z_offset_um" json:"z_offset_um"`
	DoZStack   bool    `yaml:"do_z_stack" json:"do_z_stack"`
	// SkipFactorFrame skips the channel on frames where
	// frame % (SkipFactorFrame+1) != 0.
	SkipFactorFrame int `yaml:"skip_factor_frame" json:"skip_factor_frame"`
}

// AcquiresFrame reports whether the channel is imaged on the given frame.
func (c ChannelSpec) AcquiresFrame(frame int) bool {
	if c.SkipFactorFrame <= 0 {
		return true
	}
	return frame%(c.SkipFactorFrame+1) == 0
}

// StagePosition is one entry of the position list.
type StagePosition struct {
	Label string  `yaml:"label" json:"label"`
	XUm   float64 `yaml:"x_um" json:"x_um"`
	YUm   float64 `yaml:"y_um" json:"y_um"`
}

// MaxSlices bounds the number of z-slices a single stack may have.
const MaxSlices = 100_000

// Settings is the immutable description of one multi-dimensional acquisition.
type Settings struct {
	Name    string `yaml:"name" json:"name"`
	Comment string `yaml:"comment" json:"comment"`

	UseChannels  bool          `yaml:"use_channels" json:"use_channels"`
	ChannelGroup string        `yaml:"channel_group" json:"channel_group"`
	Channels     []ChannelSpec `yaml:"channels" json:"channels"`

	UseSlices      bool    `yaml:"use_slices" json:"use_slices"`
	SliceZBottomUm float64 `yaml:"slice_z_bottom_um" json:"slice_z_bottom_um"`
	SliceZTopUm    float64 `yaml:"slice_z_top_um" json:"slice_z_top_um"`
	SliceZStepUm   float64 `yaml:"slice_z_step_um" json:"slice_z_step_um"`
	// RelativeZSlice makes the slice positions relative to the focus
	// position read when the acquisition starts.
	RelativeZSlice bool `yaml:"relative_z_slice" json:"relative_z_slice"`

	UseFrames  bool    `yaml:"use_frames" json:"use_frames"`
	NumFrames  int     `yaml:"num_frames" json:"num_frames"`
	IntervalMs float64 `yaml:"interval_ms" json:"interval_ms"`

	UsePositionList bool            `yaml:"use_position_list" json:"use_position_list"`
	Positions       []StagePosition `yaml:"positions" json:"positions"`

	AcqOrderMode OrderMode `yaml:"acq_order_mode" json:"acq_order_mode"`

	KeepShutterOpenChannels bool `yaml:"keep_shutter_open_channels" json:"keep_shutter_open_channels"`
	KeepShutterOpenSlices   bool `yaml:"keep_shutter_open_slices" json:"keep_shutter_open_slices"`

	UseAutofocus       bool `yaml:"use_autofocus" json:"use_autofocus"`
	SkipAutofocusCount int  `yaml:"skip_autofocus_count" json:"skip_autofocus_count"`
}

// Validate rejects configurations that cannot be translated into an
// unambiguous event sequence.
func (s *Settings) Validate() error {
	if !s.AcqOrderMode.Valid() {
		return &SettingsError{Field: "acq_order_mode", Err: fmt.Errorf("%w: %d", ErrUnknownOrderMode, int(s.AcqOrderMode))}
	}
	if s.UseSlices {
		if s.SliceZStepUm == 0 {
			return &SettingsError{Field: "slice_z_step_um", Err: ErrZeroZStep}
		}
		if !finite(s.SliceZStepUm) {
			return &SettingsError{Field: "slice_z_step_um", Err: ErrInvalidSettings}
		}
		if !finite(s.SliceZBottomUm) {
			return &SettingsError{Field: "slice_z_bottom_um", Err: ErrInvalidSettings}
		}
		if !finite(s.SliceZTopUm) {
			return &SettingsError{Field: "slice_z_top_um", Err: ErrInvalidSettings}
		}
		if steps := math.Abs((s.SliceZTopUm - s.SliceZBottomUm) / s.SliceZStepUm); !(steps < MaxSlices) {
			return &SettingsError{
				Field: "slice_z_step_um",
				Err:   fmt.Errorf("%w: range needs more than %d slices", ErrInvalidSettings, MaxSlices),
			}
		}
	}
	if s.UseChannels && len(s.UsedChannels()) == 0 {
		return &SettingsError{Field: "channels", Err: ErrNoChannels}
	}
	for i, c := range s.Channels {
		if c.SkipFactorFrame < 0 {
			return &SettingsError{Field: fmt.Sprintf("channels[%d].skip_factor_frame", i), Err: ErrInvalidSettings}
		}
		if c.ExposureMs < 0 {
			return &SettingsError{Field: fmt.Sprintf("channels[%d].exposure_ms", i), Err: ErrInvalidSettings}
		}
	}
	if s.UseFrames && s.IntervalMs < 0 {
		return &SettingsError{Field: "interval_ms", Err: ErrInvalidSettings}
	}
	if s.SkipAutofocusCount < 0 {
		return &SettingsError{Field: "skip_autofocus_count", Err: ErrInvalidSettings}
	}
	return nil
}

// UsedChannels returns the enabled channels in list order. The channel axis
// index of an event is the position in this slice.
func (s *Settings) UsedChannels() []ChannelSpec {
	var out []ChannelSpec
	for _, c := range s.Channels {
		if c.UseChannel {
			out = append(out, c)
		}
	}
	return out
}

// SliceCount returns the slice count, inclusive of both ends of the range.
// It is 1 when z-stacking is off. Callers must Validate first: a zero step
// has no defined count.
func (s *Settings) SliceCount() int {
	if !s.UseSlices || s.SliceZStepUm == 0 {
		return 1
	}
	return 1 + int(math.Abs((s.SliceZTopUm-s.SliceZBottomUm)/s.SliceZStepUm))
}

// SlicePositions computes the absolute slice positions from bottom towards
// top, stepping in the direction of the range.
func (s *Settings) SlicePositions() []float64 {
	if !s.UseSlices {
		return nil
	}
	step := math.Abs(s.SliceZStepUm)
	if s.SliceZBottomUm > s.SliceZTopUm {
		step = -step
	}
	n := s.SliceCount()
	out := make([]float64, n)
	for i := range out {
		out[i] = s.SliceZBottomUm + float64(i)*step
	}
	return out
}

// SliceStepUm returns the signed step between consecutive slices.
func (s *Settings) SliceStepUm() float64 {
	step := math.Abs(s.SliceZStepUm)
	if s.SliceZBottomUm > s.SliceZTopUm {
		return -step
	}
	return step
}

// MiddleSlice returns the index used by channels that do not z-stack.
func (s *Settings) MiddleSlice() int {
	return (s.SliceCount() - 1) / 2
}

// FrameCount returns the number of time points. A disabled time axis counts
// as one frame, and the time axis always yields at least one frame.
func (s *Settings) FrameCount() int {
	if !s.UseFrames {
		return 1
	}
	return max(1, s.NumFrames)
}

// PositionList returns the positions to visit, or nil when the position axis
// is disabled or the list is empty.
func (s *Settings) PositionList() []StagePosition {
	if !s.UsePositionList || len(s.Positions) == 0 {
		return nil
	}
	return s.Positions
}

// PositionCount returns the number of stage positions, at least one.
func (s *Settings) PositionCount() int {
	return max(1, len(s.PositionList()))
}

// ChannelCount returns the number of channels in use, at least one.
func (s *Settings) ChannelCount() int {
	if !s.UseChannels {
		return 1
	}
	return max(1, len(s.UsedChannels()))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
