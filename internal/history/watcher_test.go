package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-fee-lab/internal/solana"
	"solana-fee-lab/internal/solana/stub"
	"solana-fee-lab/internal/storage/memory"
)

func TestWatcher_IngestsNotifications(t *testing.T) {
	rpc := stub.NewRPCClient()
	ws := stub.NewWSClient()
	payer := newPayer(t)
	usage := memory.NewUsageStore()
	progress := memory.NewSyncProgressStore()
	reader := newReader(rpc, usage, progress)

	rpc.Transactions["known"] = landed("known", 50, i64(4795), tokenLogs...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- NewWatcher(ws, reader, payer).Run(ctx) }()
	require.Eventually(t, func() bool { return ws.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	ws.Publish(solana.LogNotification{Signature: "known", Slot: 50, Logs: tokenLogs})
	ws.Publish(solana.LogNotification{Signature: "pending", Slot: 51, Logs: tokenLogs})

	require.Eventually(t, func() bool {
		rows, _ := usage.GetByPayer(context.Background(), payer, 0)
		return len(rows) == 2
	}, 2*time.Second, 5*time.Millisecond)

	rows, err := usage.GetByPayer(context.Background(), payer, 0)
	require.NoError(t, err)
	assert.Equal(t, "pending", rows[0].Signature)
	assert.Equal(t, int64(4645), rows[0].TotalUnits, "fallback sums notification logs")
	assert.Equal(t, uint64(0), rows[0].Fee)
	assert.Equal(t, int64(4795), rows[1].TotalUnits)
	assert.Equal(t, uint64(5000), rows[1].Fee)

	p, err := progress.GetLastSynced(context.Background(), payer)
	require.NoError(t, err)
	assert.Equal(t, "pending", p.Signature)

	require.NoError(t, ws.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after subscription closed")
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	ws := stub.NewWSClient()
	reader := newReader(stub.NewRPCClient(), memory.NewUsageStore(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWatcher(ws, reader, newPayer(t)).Run(ctx) }()

	require.Eventually(t, func() bool { return ws.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatcher_RejectsBadPayer(t *testing.T) {
	reader := newReader(stub.NewRPCClient(), memory.NewUsageStore(), nil)
	err := NewWatcher(stub.NewWSClient(), reader, "nope!").Run(context.Background())
	assert.ErrorIs(t, err, solana.ErrInvalidAddress)
}
