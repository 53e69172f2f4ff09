package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	newRecord := func(id string) *domain.RunRecord {
		return &domain.RunRecord{
			ID:            id,
			Name:          "contract",
			OrderMode:     domain.PosTimeChannelSlice,
			Status:        domain.RunRunning,
			StartedAt:     time.Now().UTC().Truncate(time.Millisecond),
			EventsPlanned: 12,
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Create a record
		record := newRecord(runID)
		record.EventsExecuted = 7
		record.HookFailures = 1

		// 2. Save
		err := store.Save(ctx, record)
		require.NoError(t, err, "Save should not return error")

		// 3. Load
		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, record.Name, loaded.Name)
		assert.Equal(t, record.OrderMode, loaded.OrderMode)
		assert.Equal(t, record.Status, loaded.Status)
		assert.Equal(t, 12, loaded.EventsPlanned)
		assert.Equal(t, 7, loaded.EventsExecuted)
		assert.Equal(t, 1, loaded.HookFailures)
		assert.True(t, record.StartedAt.Equal(loaded.StartedAt), "StartedAt should survive persistence")
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		record := newRecord(runID)
		record.Status = domain.RunCompleted
		record.FinishedAt = record.StartedAt.Add(time.Second)
		require.NoError(t, store.Save(ctx, record))

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunCompleted, loaded.Status)
		assert.True(t, loaded.Done())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		// Setup
		err := store.Save(ctx, newRecord(runID))
		require.NoError(t, err)

		// Delete
		err = store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		// Verify gone
		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		// Setup: Create 2 runs
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, newRecord(id1))
		_ = store.Save(ctx, newRecord(id2))

		// Ensure cleanup
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		// List
		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}

// EventJournalContract verifies the ordering guarantees of an EventJournal.
func EventJournalContract(t *testing.T, journal EventJournal) {
	ctx := context.Background()
	runID := "journal-test-run-" + time.Now().Format("20060102150405")

	for i := range 3 {
		e := domain.NewEvent(runID)
		e.SetAxis(domain.AxisTime, i)
		e.SetZ(float64(i) * 1.5)
		require.NoError(t, journal.Append(ctx, runID, i, e))
	}

	events, err := journal.Events(ctx, runID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		frame, ok := e.TimeIndex()
		assert.True(t, ok)
		assert.Equal(t, i, frame)
		z, ok := e.Z()
		assert.True(t, ok)
		assert.InDelta(t, float64(i)*1.5, z, 1e-9)
	}

	empty, err := journal.Events(ctx, "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
