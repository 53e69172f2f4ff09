package ports

import (
	"context"
	"io"

	"github.com/aretw0/lattice/pkg/domain"
)

// Hook is a side effect bound to one lifecycle stage.
//
// Run returns the event to continue with: the same event, a modified clone,
// or nil to suppress the event. A returned error is logged and the event
// passes through unchanged.
//
// Close is called exactly once when the acquisition stream is torn down,
// whatever the reason, and is where hardware state is restored.
type Hook interface {
	Run(ctx context.Context, event *domain.Event) (*domain.Event, error)
	Close(ctx context.Context) error
}

// HookFunc adapts a function to a Hook with a no-op Close.
type HookFunc func(ctx context.Context, event *domain.Event) (*domain.Event, error)

func (f HookFunc) Run(ctx context.Context, event *domain.Event) (*domain.Event, error) {
	return f(ctx, event)
}

func (f HookFunc) Close(context.Context) error { return nil }

// EventSource is a single-pass stream of events. Next returns io.EOF once the
// stream is exhausted.
type EventSource interface {
	Next(ctx context.Context) (*domain.Event, error)
}

// EOF is returned by EventSource.Next when no events remain.
var EOF = io.EOF
