package sequence

import (
	"fmt"
	"slices"

	"github.com/aretw0/lattice/pkg/domain"
)

var axisOrders = map[domain.OrderMode][]string{
	domain.PosTimeChannelSlice: {domain.AxisPosition, domain.AxisTime, domain.AxisChannel, domain.AxisZ},
	domain.PosTimeSliceChannel: {domain.AxisPosition, domain.AxisTime, domain.AxisZ, domain.AxisChannel},
	domain.TimePosChannelSlice: {domain.AxisTime, domain.AxisPosition, domain.AxisChannel, domain.AxisZ},
	domain.TimePosSliceChannel: {domain.AxisTime, domain.AxisPosition, domain.AxisZ, domain.AxisChannel},
}

// AxisOrder returns the axis nesting of mode, outermost first.
func AxisOrder(mode domain.OrderMode) ([]string, error) {
	order, ok := axisOrders[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownOrderMode, int(mode))
	}
	return slices.Clone(order), nil
}

// outside reports whether axis a is nested outside axis b under mode.
func outside(order []string, a, b string) bool {
	return slices.Index(order, a) < slices.Index(order, b)
}
