package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/runner"
)

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	SettingsPath string
	ConfigPath   string
	RunID        string
	JSON         bool
	Quiet        bool
	Debug        bool
	NoBanner     bool

	// Stdout defaults to os.Stdout.
	Stdout io.Writer

	// Interrupt aborts the acquisition when closed, in addition to signals.
	Interrupt <-chan struct{}

	// DisableSignals leaves SIGINT and SIGTERM to the caller.
	DisableSignals bool
}

// Execute handles the 'run' command: it runs one acquisition on the
// simulated hardware and reports progress as text or JSON lines.
func Execute(ctx context.Context, opts RunOptions) (*domain.RunRecord, error) {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	cfg, s, err := loadInputs(opts.ConfigPath, opts.SettingsPath)
	if err != nil {
		return nil, err
	}
	logger := createLogger(cfg, opts.Debug)

	stack, err := BuildStack(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := stack.Close(); cerr != nil {
			logger.Warn("closing stores failed", "error", cerr)
		}
	}()

	var handler runner.OutputHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(out)
	} else {
		textOpts := []runner.TextHandlerOption{runner.WithQuiet(opts.Quiet)}
		if tui.IsTerminal(out) {
			textOpts = append(textOpts, runner.WithTextHandlerRenderer(tui.NewRenderer()))
			if !opts.NoBanner && !opts.Quiet {
				tui.PrintBanner(out, lattice.Version)
			}
		}
		handler = runner.NewTextHandler(out, textOpts...)
	}

	r := runner.NewRunner(
		runner.WithLogger(logger),
		runner.WithHandler(handler),
		runner.WithSignals(!opts.DisableSignals),
		runner.WithInterruptSource(opts.Interrupt),
		runner.WithRunID(opts.RunID),
	)

	rec, err := r.Run(ctx, stack.Engine, s)
	if err != nil && !isInterrupted(err) {
		return rec, err
	}
	if rec != nil && rec.Status == domain.RunFailed {
		return rec, fmt.Errorf("acquisition %s failed: %s", rec.ID, rec.Error)
	}
	return rec, nil
}
