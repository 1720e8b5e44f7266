package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/storage"
)

func TestUsageStore_InsertAndGetByPayer(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewUsageStore(pool)

	rows := []*domain.TransactionUsage{
		{Signature: "s1", Payer: "p", Slot: 10, Fee: 5000, TotalUnits: 450, ObservedAt: 1},
		{
			Signature: "s2", Payer: "p", Slot: 30, BlockTime: 1704067200, Fee: 5150, TotalUnits: 2750,
			Instructions: []domain.InstructionUsage{
				{Index: 0, ProgramID: "11111111111111111111111111111111", UnitsConsumed: 450},
				{Index: 1, ProgramID: "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", UnitsConsumed: 2300},
			},
			ObservedAt: 2,
		},
		{Signature: "s3", Payer: "p", Slot: 20, Fee: 5000, TotalUnits: 200, Failed: true, ObservedAt: 3},
		{Signature: "s4", Payer: "other", Slot: 40, ObservedAt: 4},
	}
	for _, r := range rows {
		require.NoError(t, store.Insert(ctx, r))
	}

	got, err := store.GetByPayer(ctx, "p", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rows[1], got[0])
	assert.Equal(t, "s3", got[1].Signature)
	assert.True(t, got[1].Failed)
	assert.Equal(t, []domain.InstructionUsage{}, got[1].Instructions)

	assert.ErrorIs(t, store.Insert(ctx, rows[0]), storage.ErrDuplicateKey)
}

func TestSyncProgressStore_Upsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSyncProgressStore(pool)

	_, err := store.GetLastSynced(ctx, "p")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SetLastSynced(ctx, &storage.SyncProgress{Payer: "p", Slot: 10, Signature: "a"}))
	require.NoError(t, store.SetLastSynced(ctx, &storage.SyncProgress{Payer: "p", Slot: 20, Signature: "b"}))

	got, err := store.GetLastSynced(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, &storage.SyncProgress{Payer: "p", Slot: 20, Signature: "b"}, got)

	assert.ErrorIs(t, store.SetLastSynced(ctx, nil), storage.ErrInvalidInput)
}
