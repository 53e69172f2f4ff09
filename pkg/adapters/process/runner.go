package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// EnvPrefix prefixes every variable describing the event.
const EnvPrefix = "LATTICE_"

// maxStderr caps the stderr excerpt carried by errors.
const maxStderr = 512

// Runner executes external commands for acquisition events.
//
// Event data is passed as environment variables, never as arguments, so a
// preset name cannot inject flags:
//
//	LATTICE_RUN_ID, LATTICE_TIME, LATTICE_POSITION, LATTICE_CHANNEL,
//	LATTICE_SLICE, LATTICE_Z_UM, LATTICE_X_UM, LATTICE_Y_UM,
//	LATTICE_PRESET, LATTICE_EVENT (the event as JSON)
//
// Axis variables are only set when the event carries the axis.
type Runner struct {
	baseDir string
	logger  *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithLogger logs command output at debug level.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Execute runs cfg's command for e and returns its trimmed stdout.
// A non-zero exit or a timeout is an error carrying the stderr excerpt.
func (r *Runner) Execute(ctx context.Context, cfg RunnableConfig, e *domain.Event) (string, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return "", fmt.Errorf("runnable %q: %w", cfg.Name, err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = r.baseDir

	env, err := eventEnv(e)
	if err != nil {
		return "", err
	}
	cmd.Env = cmd.Environ()
	for k, v := range cfg.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env, env...)

	// Capture Output
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	output := strings.TrimSpace(stdout.String())
	r.logger.DebugContext(ctx, "runnable executed", "name", cfg.Name, "event", e.String(), "stdout", output)

	if runErr != nil {
		if ctx.Err() != nil {
			return output, fmt.Errorf("runnable %q: %w", cfg.Name, ctx.Err())
		}
		return output, fmt.Errorf("runnable %q failed: %w: %s", cfg.Name, runErr, excerpt(stderr.String()))
	}
	return output, nil
}

// Func adapts cfg into a runnable callback for Engine.AttachRunnable.
func (r *Runner) Func(cfg RunnableConfig) func(context.Context, *domain.Event) error {
	return func(ctx context.Context, e *domain.Event) error {
		_, err := r.Execute(ctx, cfg, e)
		return err
	}
}

// eventEnv serializes the event into environment variables.
func eventEnv(e *domain.Event) ([]string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}

	env := []string{
		EnvPrefix + "RUN_ID=" + e.RunID,
		EnvPrefix + "EVENT=" + string(data),
	}
	axes := []struct{ name, key string }{
		{domain.AxisTime, "TIME"},
		{domain.AxisPosition, "POSITION"},
		{domain.AxisChannel, "CHANNEL"},
		{domain.AxisZ, "SLICE"},
	}
	for _, a := range axes {
		if v, ok := e.Axis(a.name); ok {
			env = append(env, EnvPrefix+a.key+"="+strconv.Itoa(v))
		}
	}
	if z, ok := e.Z(); ok {
		env = append(env, EnvPrefix+"Z_UM="+formatFloat(z))
	}
	if x, y, ok := e.XY(); ok {
		env = append(env, EnvPrefix+"X_UM="+formatFloat(x), EnvPrefix+"Y_UM="+formatFloat(y))
	}
	if e.ConfigPreset != "" {
		env = append(env, EnvPrefix+"PRESET="+e.ConfigPreset)
	}
	return env, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		return s[:maxStderr] + "…"
	}
	return s
}
