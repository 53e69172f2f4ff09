package hooks

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// ZRestore saves the focus position before a z-stack block and moves back to
// it after the block. With channels enabled the block spans every channel, so
// the save and restore bracket the whole group.
type ZRestore struct {
	hw    ports.Hardware
	geo   geometry
	saved *float64
}

// NewZRestore creates the pair of hooks for one run.
func NewZRestore(hw ports.Hardware, s *domain.Settings) *ZRestore {
	return &ZRestore{hw: hw, geo: newGeometry(s)}
}

// Before returns the hook that saves the focus. It also owns Close.
func (z *ZRestore) Before() ports.Hook { return zSave{z} }

// After returns the hook that restores the focus.
func (z *ZRestore) After() ports.Hook { return zRestoreAfter{z} }

func (z *ZRestore) restore(ctx context.Context) error {
	if z.saved == nil {
		return nil
	}
	target := *z.saved
	z.saved = nil
	if err := z.hw.SetPosition(ctx, target); err != nil {
		return fmt.Errorf("restoring focus to %.3f: %w", target, err)
	}
	return nil
}

type zSave struct{ *ZRestore }

func (h zSave) Run(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	if e.Finished || h.saved != nil || !h.geo.blockStart(coordsOf(e)) {
		return e, nil
	}
	pos, err := h.hw.Position(ctx)
	if err != nil {
		return e, fmt.Errorf("saving focus: %w", err)
	}
	h.saved = &pos
	return e, nil
}

// Close restores a focus that was saved but never restored, which happens
// when the run ends inside a z-stack.
func (h zSave) Close(ctx context.Context) error { return h.restore(ctx) }

type zRestoreAfter struct{ *ZRestore }

func (h zRestoreAfter) Run(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	if e.Finished || !h.geo.blockEnd(coordsOf(e)) {
		return e, nil
	}
	return e, h.restore(ctx)
}

func (h zRestoreAfter) Close(context.Context) error { return nil }
