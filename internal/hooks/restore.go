package hooks

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
)

// ChannelRestore puts the channel group back to the preset it had before the
// acquisition. It acts only on the finished sentinel.
type ChannelRestore struct {
	hw     configSetter
	group  string
	preset string
}

type configSetter interface {
	SetConfig(ctx context.Context, group, preset string) error
}

// NewChannelRestore creates the hook for a preset captured at start.
func NewChannelRestore(hw configSetter, group, preset string) *ChannelRestore {
	return &ChannelRestore{hw: hw, group: group, preset: preset}
}

func (h *ChannelRestore) Run(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	if !e.Finished {
		return e, nil
	}
	if err := h.hw.SetConfig(ctx, h.group, h.preset); err != nil {
		return e, fmt.Errorf("restoring %s to %s: %w", h.group, h.preset, err)
	}
	return e, nil
}

func (h *ChannelRestore) Close(context.Context) error { return nil }
