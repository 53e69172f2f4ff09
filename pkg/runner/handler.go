package runner

import (
	"context"
	"log/slog"

	"github.com/aretw0/lattice/pkg/domain"
)

// OutputHandler defines the strategy for presenting acquisition progress.
// This allows switching between Text (CLI) and JSON (structured) modes.
type OutputHandler interface {
	// RunStarted is called once, before the first event.
	RunStarted(ctx context.Context, rec *domain.RunRecord) error

	// EventExecuted is called after the camera exposed for the event.
	EventExecuted(ctx context.Context, e *domain.Event) error

	// EventSuppressed is called when a hook dropped the event at stage.
	EventSuppressed(ctx context.Context, stage domain.Stage, e *domain.Event) error

	// HookFailed is called when a hook errored or panicked. The run continues.
	HookFailed(ctx context.Context, stage domain.Stage, e *domain.Event, err error) error

	// RunEnded is called once, after every hook was closed.
	RunEnded(ctx context.Context, rec *domain.RunRecord) error

	// SystemOutput presents a meta-message (e.g. "abort requested").
	SystemOutput(ctx context.Context, msg string) error
}

// lifecycleOf adapts h to engine lifecycle hooks. Write errors are logged,
// never propagated into the acquisition.
func lifecycleOf(h OutputHandler, logger *slog.Logger) domain.LifecycleHooks {
	report := func(ctx context.Context, what string, err error) {
		if err != nil {
			logger.WarnContext(ctx, "output handler failed", "callback", what, "error", err)
		}
	}
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, rec *domain.RunRecord) {
			report(ctx, "run_started", h.RunStarted(ctx, rec))
		},
		OnEventExecuted: func(ctx context.Context, e *domain.Event) {
			report(ctx, "event_executed", h.EventExecuted(ctx, e))
		},
		OnEventSuppressed: func(ctx context.Context, stage domain.Stage, e *domain.Event) {
			report(ctx, "event_suppressed", h.EventSuppressed(ctx, stage, e))
		},
		OnHookError: func(ctx context.Context, stage domain.Stage, e *domain.Event, err error) {
			report(ctx, "hook_failed", h.HookFailed(ctx, stage, e, err))
		},
		OnRunEnd: func(ctx context.Context, rec *domain.RunRecord) {
			report(ctx, "run_ended", h.RunEnded(ctx, rec))
		},
	}
}
