package hooks

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Binding is a hook registered at one stage.
type Binding struct {
	Stage domain.Stage
	Name  string
	Hook  ports.Hook
}

// Register adds bindings to p in order.
func Register(p *runtime.Pipeline, bindings []Binding) {
	for _, b := range bindings {
		p.Add(b.Stage, b.Name, b.Hook)
	}
}

// Defaults creates the built-in hooks that s enables, fresh for the run rc,
// followed by the runnables. It reads the hardware state that has to be
// restored at the end (continuous focus, channel preset) before returning.
func Defaults(ctx context.Context, hw ports.Hardware, s *domain.Settings, rc *runtime.RunContext, runnables []Runnable) ([]Binding, error) {
	var out []Binding

	if s.AcqOrderMode.PositionFirst() && s.UseFrames && s.PositionList() != nil {
		out = append(out, Binding{domain.BeforeHardware, "timelapse-position", NewTimelapsePosition(rc)})
	}

	if s.UseAutofocus {
		out = append(out, Binding{domain.BeforeHardware, "autofocus", NewAutofocus(hw, s.SkipAutofocusCount)})
	}

	if s.UseSlices {
		z := NewZRestore(hw, s)
		out = append(out,
			Binding{domain.BeforeHardware, "z-save", z.Before()},
			Binding{domain.AfterExposure, "z-restore", z.After()},
		)

		enabled, err := hw.ContinuousFocusEnabled(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading continuous focus state: %w", err)
		}
		if enabled {
			f := NewContinuousFocus(hw, s)
			out = append(out,
				Binding{domain.BeforeHardware, "continuous-focus-suspend", f.Before()},
				Binding{domain.AfterExposure, "continuous-focus-resume", f.After()},
			)
		}
	}

	if sh := NewShutter(hw, s); sh.Enabled() {
		out = append(out,
			Binding{domain.AfterHardware, "shutter-open", sh.Open()},
			Binding{domain.AfterExposure, "shutter-close", sh.CloseHook()},
		)
	}

	if s.UseChannels && s.ChannelGroup != "" {
		preset, err := hw.CurrentConfig(ctx, s.ChannelGroup)
		if err != nil {
			return nil, fmt.Errorf("reading %s preset: %w", s.ChannelGroup, err)
		}
		if preset != "" {
			out = append(out, Binding{domain.AfterHardware, "channel-restore", NewChannelRestore(hw, s.ChannelGroup, preset)})
		}
	}

	for i, r := range runnables {
		out = append(out, Binding{domain.AfterHardware, fmt.Sprintf("runnable-%d", i), r})
	}
	return out, nil
}
