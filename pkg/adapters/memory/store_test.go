package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStoreContract(t, store)
}

func TestMemoryStore_JournalContract(t *testing.T) {
	ports.EventJournalContract(t, memory.NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	record := &domain.RunRecord{ID: "r1", Status: domain.RunRunning}
	require.NoError(t, store.Save(ctx, record))
	record.Status = domain.RunFailed

	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, loaded.Status, "store must not alias the saved record")
}

func TestLocker_SingleHolder(t *testing.T) {
	locker := memory.NewLocker()
	ctx := context.Background()

	unlock, ok, err := locker.TryLock(ctx, "acq", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "acq", time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	require.NoError(t, unlock(ctx))
	unlock2, ok, err := locker.TryLock(ctx, "acq", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// A stale unlock must not release the new holder.
	require.NoError(t, unlock(ctx))
	_, ok, _ = locker.TryLock(ctx, "acq", time.Second)
	assert.False(t, ok)
	require.NoError(t, unlock2(ctx))
}
