package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

type binding struct {
	stage domain.Stage
	name  string
	hook  ports.Hook
}

// Pipeline runs the hooks of each lifecycle stage in registration order.
//
// A hook that fails or panics is logged and skipped: the event it received
// continues unchanged. A hook that returns nil suppresses the event.
type Pipeline struct {
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	bindings []binding
	failures int
	closed   bool
}

// PipelineOption configures the Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) PipelineOption {
	return func(p *Pipeline) {
		p.hooks = hooks
	}
}

// NewPipeline creates an empty pipeline.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add registers hook at stage. name is used in logs only.
func (p *Pipeline) Add(stage domain.Stage, name string, hook ports.Hook) {
	p.bindings = append(p.bindings, binding{stage: stage, name: name, hook: hook})
}

// Len returns the number of registered hooks.
func (p *Pipeline) Len() int { return len(p.bindings) }

// Failures returns the number of hook errors and panics so far.
func (p *Pipeline) Failures() int { return p.failures }

// Run passes e through every hook of stage. It returns nil if a hook
// suppressed the event.
func (p *Pipeline) Run(ctx context.Context, stage domain.Stage, e *domain.Event) *domain.Event {
	for _, b := range p.bindings {
		if b.stage != stage {
			continue
		}
		out, err := p.invoke(ctx, b, e)
		if err != nil {
			p.failures++
			p.logger.WarnContext(ctx, "hook failed", "hook", b.name, "stage", stage.String(), "event", e.String(), "error", err)
			if p.hooks.OnHookError != nil {
				p.hooks.OnHookError(ctx, stage, e, err)
			}
			continue
		}
		if out == nil {
			p.logger.DebugContext(ctx, "event suppressed", "hook", b.name, "stage", stage.String(), "event", e.String())
			if p.hooks.OnEventSuppressed != nil {
				p.hooks.OnEventSuppressed(ctx, stage, e)
			}
			return nil
		}
		e = out
	}
	return e
}

func (p *Pipeline) invoke(ctx context.Context, b binding, e *domain.Event) (out *domain.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return b.hook.Run(ctx, e.Clone())
}

// Close closes every hook once, in registration order. Errors are logged.
// Later calls do nothing.
func (p *Pipeline) Close(ctx context.Context) {
	if p.closed {
		return
	}
	p.closed = true
	for _, b := range p.bindings {
		if err := p.close(ctx, b); err != nil {
			p.logger.WarnContext(ctx, "hook close failed", "hook", b.name, "stage", b.stage.String(), "error", err)
		}
	}
}

func (p *Pipeline) close(ctx context.Context, b binding) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook close panicked: %v", r)
		}
	}()
	return b.hook.Close(ctx)
}
