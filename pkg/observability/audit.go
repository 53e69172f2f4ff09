package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/lattice/pkg/domain"
)

// AuditHooks logs every acquisition transition. Executed events are logged
// at debug level; everything else at info or warn.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, rec *domain.RunRecord) {
			logger.InfoContext(ctx, "run_start",
				"run_id", rec.ID,
				"name", rec.Name,
				"order_mode", rec.OrderMode.String(),
				"events_planned", rec.EventsPlanned,
			)
		},
		OnEventExecuted: func(ctx context.Context, e *domain.Event) {
			logger.DebugContext(ctx, "event_executed", "run_id", e.RunID, "event", e.String())
		},
		OnEventSuppressed: func(ctx context.Context, stage domain.Stage, e *domain.Event) {
			logger.InfoContext(ctx, "event_suppressed", "run_id", e.RunID, "stage", stage.String(), "event", e.String())
		},
		OnHookError: func(ctx context.Context, stage domain.Stage, e *domain.Event, err error) {
			logger.WarnContext(ctx, "hook_error", "run_id", e.RunID, "stage", stage.String(), "event", e.String(), "error", err)
		},
		OnRunEnd: func(ctx context.Context, rec *domain.RunRecord) {
			logger.InfoContext(ctx, "run_end",
				"run_id", rec.ID,
				"status", string(rec.Status),
				"events_executed", rec.EventsExecuted,
				"events_suppressed", rec.EventsSuppressed,
				"hook_failures", rec.HookFailures,
			)
		},
	}
}
