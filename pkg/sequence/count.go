package sequence

import (
	"github.com/aretw0/lattice/pkg/domain"
)

// Dims are the effective sizes of the four axes. Disabled axes count as one.
type Dims struct {
	Frames    int `json:"frames"`
	Positions int `json:"positions"`
	Slices    int `json:"slices"`
	Channels  int `json:"channels"`
}

// DimsOf returns the axis sizes of s.
func DimsOf(s *domain.Settings) Dims {
	return Dims{
		Frames:    s.FrameCount(),
		Positions: s.PositionCount(),
		Slices:    s.SliceCount(),
		Channels:  s.ChannelCount(),
	}
}

// TotalEvents returns the number of events Build would produce for s,
// accounting for per-channel frame skipping and z-stacking.
func TotalEvents(s *domain.Settings) int {
	d := DimsOf(s)
	used := s.UsedChannels()
	if !s.UseChannels || len(used) == 0 {
		return d.Frames * d.Slices * d.Positions
	}
	perPosition := 0
	for frame := range d.Frames {
		for _, c := range used {
			if !c.AcquiresFrame(frame) {
				continue
			}
			if s.UseSlices && c.DoZStack {
				perPosition += d.Slices
			} else {
				perPosition++
			}
		}
	}
	return perPosition * d.Positions
}

// TotalBytes estimates the image memory of the acquisition.
func TotalBytes(s *domain.Settings, width, height, bytesPerPixel int) int64 {
	return int64(width) * int64(height) * int64(bytesPerPixel) * int64(TotalEvents(s))
}

// Summary describes an acquisition plan.
type Summary struct {
	Name        string    `json:"name,omitempty"`
	OrderMode   string    `json:"order_mode"`
	AxisOrder   []string  `json:"axis_order"`
	Dims        Dims      `json:"dims"`
	TotalEvents int       `json:"total_events"`
	SlicesUm    []float64 `json:"slices_um,omitempty"`
	// SlicesFirst is true when each channel is acquired per slice.
	SlicesFirst bool `json:"slices_first"`
	// TimeFirst is true when every position is visited per time point.
	TimeFirst bool `json:"time_first"`
}

// Summarize validates s and describes its plan.
func Summarize(s *domain.Settings) (Summary, error) {
	if err := s.Validate(); err != nil {
		return Summary{}, err
	}
	order, err := AxisOrder(s.AcqOrderMode)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Name:        s.Name,
		OrderMode:   s.AcqOrderMode.String(),
		AxisOrder:   order,
		Dims:        DimsOf(s),
		TotalEvents: TotalEvents(s),
		SlicesUm:    s.SlicePositions(),
		SlicesFirst: !s.AcqOrderMode.ChannelFirst(),
		TimeFirst:   !s.AcqOrderMode.PositionFirst(),
	}, nil
}
