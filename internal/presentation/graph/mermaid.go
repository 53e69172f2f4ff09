package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/sequence"
)

// Overlay marks the event currently executing on the diagram.
type Overlay struct {
	Current *domain.Event
}

// GenerateMermaid produces a Mermaid flowchart of the acquisition loop nest,
// outermost axis first. It applies semantic styling:
// - Acquisition: ((Circle))
// - Axis loop: [Rectangle] with its size
// - Image event: [[Subroutine]]
// Disabled axes are left out. With an overlay, axis nodes show the current
// index and are styled as current.
func GenerateMermaid(s *domain.Settings, overlay *Overlay) (string, error) {
	order, err := sequence.AxisOrder(s.AcqOrderMode)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	name := s.Name
	if name == "" {
		name = "acquisition"
	}
	fmt.Fprintf(&sb, "    acq((\"%s <br/> %s\"))\n", escape(name), s.AcqOrderMode)

	prev := "acq"
	var active []string
	for _, axis := range order {
		label, ok := axisLabel(s, axis)
		if !ok {
			continue
		}
		if overlay != nil && overlay.Current != nil {
			if idx, ok := overlay.Current.Axis(axis); ok {
				label += fmt.Sprintf(" <br/> ▶ %d", idx)
				active = append(active, axis)
			}
		}
		id := sanitizeMermaidID(axis)
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", id, label)
		fmt.Fprintf(&sb, "    %s --> %s\n", prev, id)
		prev = id
	}

	fmt.Fprintf(&sb, "    snap[[\"snap × %d\"]]\n", sequence.TotalEvents(s))
	fmt.Fprintf(&sb, "    %s --> snap\n", prev)

	// Apply Overlay Styles
	if len(active) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		for _, axis := range active {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(axis))
		}
	}

	return sb.String(), nil
}

func axisLabel(s *domain.Settings, axis string) (string, bool) {
	switch axis {
	case domain.AxisPosition:
		if s.PositionList() == nil {
			return "", false
		}
		return fmt.Sprintf("position × %d", s.PositionCount()), true
	case domain.AxisTime:
		if !s.UseFrames {
			return "", false
		}
		label := fmt.Sprintf("time × %d", s.FrameCount())
		if s.IntervalMs > 0 {
			label += fmt.Sprintf(" <br/> ⏱️ %s", time.Duration(s.IntervalMs*float64(time.Millisecond)))
		}
		return label, true
	case domain.AxisChannel:
		if !s.UseChannels {
			return "", false
		}
		var presets []string
		for _, c := range s.UsedChannels() {
			presets = append(presets, escape(c.Config))
		}
		return fmt.Sprintf("channel × %d <br/> %s", s.ChannelCount(), strings.Join(presets, ", ")), true
	case domain.AxisZ:
		if !s.UseSlices {
			return "", false
		}
		label := fmt.Sprintf("z × %d <br/> step %g µm", s.SliceCount(), s.SliceStepUm())
		if s.RelativeZSlice {
			label += " (relative)"
		}
		return label, true
	}
	return "", false
}

// escape replaces double quotes, which end Mermaid labels.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
