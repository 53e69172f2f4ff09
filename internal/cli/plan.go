package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/sequence"
	"github.com/dustin/go-humanize"
)

// PlanOptions configures the plan, count and validate commands.
type PlanOptions struct {
	SettingsPath string
	ConfigPath   string
	JSON         bool
	Stdout       io.Writer

	// Limit caps the number of printed events; 0 prints them all.
	Limit int

	// Mermaid prints the loop nest as a Mermaid flowchart instead of events.
	Mermaid bool
}

func (o PlanOptions) out() io.Writer {
	if o.Stdout == nil {
		return os.Stdout
	}
	return o.Stdout
}

// Plan prints the event sequence of the settings without touching hardware
// state. Relative z-stacks are resolved against the configured focus.
func Plan(ctx context.Context, opts PlanOptions) error {
	cfg, s, err := loadInputs(opts.ConfigPath, opts.SettingsPath)
	if err != nil {
		return err
	}
	if opts.Mermaid {
		chart, err := graph.GenerateMermaid(s, nil)
		if err != nil {
			return err
		}
		_, err = io.WriteString(opts.out(), chart)
		return err
	}

	stack, err := BuildStack(cfg, createLogger(cfg, false))
	if err != nil {
		return err
	}
	defer stack.Close()

	it, err := stack.Engine.Events(ctx, s)
	if err != nil {
		return err
	}

	total := sequence.TotalEvents(s)
	var events []*domain.Event
	for opts.Limit <= 0 || len(events) < opts.Limit {
		e, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if e.Finished {
			continue
		}
		events = append(events, e)
	}

	w := opts.out()
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	width := len(fmt.Sprint(total))
	for i, e := range events {
		fmt.Fprintf(w, "%*d  %s\n", width, i+1, e)
	}
	if len(events) < total {
		fmt.Fprintf(w, "... %d more\n", total-len(events))
	}
	return nil
}

// Count prints the dimensions and the number of events of the settings.
func Count(opts PlanOptions) error {
	cfg, s, err := loadInputs(opts.ConfigPath, opts.SettingsPath)
	if err != nil {
		return err
	}

	summary, err := sequence.Summarize(s)
	if err != nil {
		return err
	}

	cam := cfg.Hardware.Camera
	bytes := sequence.TotalBytes(s, cam.Width, cam.Height, cam.BytesPerPixel)

	w := opts.out()
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(countResult{Summary: summary, TotalBytes: bytes})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if summary.Name != "" {
		fmt.Fprintf(tw, "Name\t%s\n", summary.Name)
	}
	fmt.Fprintf(tw, "Order\t%s (%s)\n", summary.OrderMode, strings.Join(summary.AxisOrder, " > "))
	fmt.Fprintf(tw, "Frames\t%d\n", summary.Dims.Frames)
	fmt.Fprintf(tw, "Positions\t%d\n", summary.Dims.Positions)
	if z := summary.SlicesUm; len(z) > 0 {
		fmt.Fprintf(tw, "Slices\t%d (%g .. %g µm)\n", summary.Dims.Slices, z[0], z[len(z)-1])
	} else {
		fmt.Fprintf(tw, "Slices\t%d\n", summary.Dims.Slices)
	}
	fmt.Fprintf(tw, "Channels\t%d\n", summary.Dims.Channels)
	fmt.Fprintf(tw, "Events\t%d\n", summary.TotalEvents)
	fmt.Fprintf(tw, "Memory\t%s (%dx%d, %d B/px)\n", humanize.IBytes(uint64(bytes)), cam.Width, cam.Height, cam.BytesPerPixel)
	return tw.Flush()
}

type countResult struct {
	sequence.Summary
	TotalBytes int64 `json:"total_bytes"`
}

// Validate loads and checks the settings file.
func Validate(opts PlanOptions) error {
	_, s, err := loadInputs(opts.ConfigPath, opts.SettingsPath)
	if err != nil {
		return err
	}
	printSystemMessage(opts.out(), "Settings are valid: %d events.", sequence.TotalEvents(s))
	return nil
}
