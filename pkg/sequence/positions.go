package sequence

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// Positions expands the stage position axis. An empty list passes the base
// through without recording the axis.
type Positions struct {
	List []domain.StagePosition
}

func (p *Positions) Axis() string { return domain.AxisPosition }

func (p *Positions) Expand(_ context.Context, base *domain.Event) (Cursor, error) {
	if len(p.List) == 0 {
		return &sliceCursor{events: []*domain.Event{base.Clone()}}, nil
	}
	return &funcCursor{fn: func(i int) (*domain.Event, bool) {
		if i >= len(p.List) {
			return nil, false
		}
		pos := p.List[i]
		e := base.Clone()
		e.SetXY(pos.XUm, pos.YUm)
		e.SetAxis(domain.AxisPosition, i)
		return e, true
	}}, nil
}
