package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// RunStore persists acquisition run records.
type RunStore interface {
	// Save creates or replaces the record with the same ID.
	Save(ctx context.Context, record *domain.RunRecord) error

	// Load retrieves a record.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.RunRecord, error)

	// Delete removes a record.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of the stored runs.
	List(ctx context.Context) ([]string, error)
}

// EventJournal is implemented by stores that also keep the executed events.
type EventJournal interface {
	Append(ctx context.Context, runID string, seq int, event *domain.Event) error
	Events(ctx context.Context, runID string) ([]*domain.Event, error)
}
