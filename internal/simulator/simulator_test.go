package simulator

import (
	"context"
	"crypto/ed25519"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/solana"
	"solana-fee-lab/internal/solana/stub"
)

func newPayer(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return base58.Encode(pub)
}

func price(p uint64) *uint64 { return &p }

func newSim(rpc *stub.RPCClient) *Simulator {
	return New(Options{Network: rpc, CallTimeout: time.Second})
}

func TestSimulate_PrimarySuccessWithPriorityFee(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.Fund(payer, 1_000_000_000)
	rpc.Simulate = func([]byte) (*solana.SimulationResult, error) {
		return stub.SuccessResult(150_000, 200_000), nil
	}

	out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000, UnitPrice: price(1000)})

	require.True(t, out.Succeeded, out.FailureReason)
	assert.Equal(t, domain.ProbePathPrimary, out.Path)
	require.NotNil(t, out.UnitsConsumed)
	assert.Equal(t, int64(150_000), *out.UnitsConsumed)
	require.NotNil(t, out.ComputedFee)
	assert.Equal(t, int64(5150), *out.ComputedFee)
	assert.Equal(t, int64(5000), out.BaseFee)
	assert.Empty(t, out.Warnings)
	assert.NotEmpty(t, out.DiagnosticLines)
	assert.Equal(t, []string{"getAccountInfo", "getBalance", "getLatestBlockhash", "simulateTransaction"}, rpc.Calls())
}

func TestSimulate_NoPriceChargesBaseFee(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.Fund(payer, 10)
	rpc.Simulate = func([]byte) (*solana.SimulationResult, error) {
		return stub.SuccessResult(100_000, 200_000), nil
	}

	out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000})
	require.True(t, out.Succeeded)
	assert.Equal(t, int64(5000), *out.ComputedFee)
}

func TestSimulate_UsageWarnings(t *testing.T) {
	tests := []struct {
		name     string
		consumed int64
		limit    int64
		want     string
	}{
		{"high", 195_000, 200_000, "High compute unit usage: 195000/200000 (98%)"},
		{"low", 1_000, 200_000, "Low compute unit usage: Consider reducing limit to ~1200 units"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpc := stub.NewRPCClient()
			payer := newPayer(t)
			rpc.Fund(payer, 1)
			rpc.Simulate = func([]byte) (*solana.SimulationResult, error) {
				return stub.SuccessResult(tt.consumed, tt.limit), nil
			}
			out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: tt.limit})
			require.True(t, out.Succeeded)
			assert.Equal(t, []string{tt.want}, out.Warnings)
		})
	}
}

func TestSimulate_UnitsFromResultWhenNoConsumedLine(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.Fund(payer, 1)
	units := int64(3000)
	rpc.Simulate = func([]byte) (*solana.SimulationResult, error) {
		return &solana.SimulationResult{Logs: []string{"Program log: hi"}, UnitsConsumed: &units}, nil
	}

	out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000})
	require.True(t, out.Succeeded)
	assert.Equal(t, int64(3000), *out.UnitsConsumed)
	assert.Empty(t, out.Warnings, "warnings require a consumed line")
}

func TestSimulate_UnfundedPayerUsesMinimal(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)

	out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000, UnitPrice: price(5000)})

	require.True(t, out.Succeeded, out.FailureReason)
	assert.Equal(t, domain.ProbePathMinimal, out.Path)
	assert.Equal(t, int64(5000), *out.ComputedFee, "minimal path never charges priority")
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "Minimal simulation used")
	assert.Contains(t, out.Warnings[0], "payer account not found")
	assert.NotContains(t, rpc.Calls(), "getBalance")
}

func TestSimulate_ZeroBalanceUsesMinimal(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.Fund(payer, 0)

	out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 1400})
	require.True(t, out.Succeeded)
	assert.Equal(t, domain.ProbePathMinimal, out.Path)
}

func TestSimulate_FallbackTriggersOnPrimaryRejection(t *testing.T) {
	for _, reason := range []string{"AccountNotFound", "InsufficientFundsForFee", "insufficient funds"} {
		t.Run(reason, func(t *testing.T) {
			rpc := stub.NewRPCClient()
			payer := newPayer(t)
			rpc.Fund(payer, 1)
			calls := 0
			rpc.Simulate = func([]byte) (*solana.SimulationResult, error) {
				calls++
				if calls == 1 {
					return stub.FailureResult(reason), nil
				}
				return stub.SuccessResult(300, 1400), nil
			}

			out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 1400})
			require.True(t, out.Succeeded, out.FailureReason)
			assert.Equal(t, domain.ProbePathMinimal, out.Path)
			assert.Equal(t, 2, calls)
		})
	}
}

func TestSimulate_PrimaryRejection(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.Fund(payer, 1)
	rpc.Simulate = func([]byte) (*solana.SimulationResult, error) {
		return stub.FailureResult(map[string]interface{}{"InstructionError": []interface{}{1, "InvalidInstructionData"}}), nil
	}

	out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000})

	assert.False(t, out.Succeeded)
	assert.Equal(t, domain.FailureRejected, out.FailureKind)
	assert.Equal(t, domain.ProbePathPrimary, out.Path)
	assert.True(t, strings.HasPrefix(out.FailureReason, "Simulation failed: "))
	assert.Contains(t, out.FailureReason, "InvalidInstructionData")
	assert.Nil(t, out.UnitsConsumed)
	assert.Nil(t, out.ComputedFee)
	assert.NotEmpty(t, out.DiagnosticLines)
}

func TestSimulate_ConfiguredBaseFeeOnEveryOutcome(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.Fund(payer, 1)
	rpc.Simulate = func([]byte) (*solana.SimulationResult, error) {
		return stub.SuccessResult(100_000, 200_000), nil
	}
	sim := New(Options{Network: rpc, CallTimeout: time.Second, BaseFee: 10_000})

	ok := sim.Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000})
	require.True(t, ok.Succeeded, ok.FailureReason)
	assert.Equal(t, int64(10_000), ok.BaseFee)

	rpc.FailWith("simulateTransaction", &solana.RPCError{Code: -32602, Message: "invalid transaction"})
	rejected := sim.Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000})
	require.False(t, rejected.Succeeded)
	assert.Equal(t, int64(10_000), rejected.BaseFee)

	invalid := sim.Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 10})
	assert.Equal(t, domain.FailureInvalidInput, invalid.FailureKind)
	assert.Equal(t, int64(10_000), invalid.BaseFee)
}

func TestSimulate_PrimaryRPCErrorIsRejected(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.Fund(payer, 1)
	rpc.FailWith("simulateTransaction", &solana.RPCError{Code: -32602, Message: "invalid transaction"})

	out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000})
	assert.False(t, out.Succeeded)
	assert.Equal(t, domain.FailureRejected, out.FailureKind)
	assert.Equal(t, domain.ProbePathPrimary, out.Path)
}

func TestSimulate_TransportErrorOnBothProbes(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.Fund(payer, 1)
	rpc.FailWith("simulateTransaction", stub.ErrUnreachable)

	out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000})
	assert.False(t, out.Succeeded)
	assert.Equal(t, domain.FailureNetworkUnavailable, out.FailureKind)
	assert.Equal(t, domain.ProbePathMinimal, out.Path)
}

func TestSimulate_BlockhashUnavailable(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.Fund(payer, 1)
	rpc.FailWith("getLatestBlockhash", stub.ErrUnreachable)

	out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000})
	assert.False(t, out.Succeeded)
	assert.Equal(t, domain.FailureNetworkUnavailable, out.FailureKind)
	assert.Contains(t, out.FailureReason, "Minimal simulation failed")
}

func TestSimulate_AccountLookupErrorUsesMinimal(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.FailWith("getAccountInfo", stub.ErrUnreachable)

	out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000})
	require.True(t, out.Succeeded)
	assert.Equal(t, domain.ProbePathMinimal, out.Path)
}

func TestSimulate_BlockingNetworkTimesOut(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Block = true
	payer := newPayer(t)
	sim := New(Options{Network: rpc, CallTimeout: 20 * time.Millisecond})

	done := make(chan domain.SimulationOutcome, 1)
	go func() {
		done <- sim.Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000})
	}()

	select {
	case out := <-done:
		assert.False(t, out.Succeeded)
		assert.Equal(t, domain.FailureNetworkUnavailable, out.FailureKind)
	case <-time.After(5 * time.Second):
		t.Fatal("simulation did not honour call timeout")
	}
}

func TestSimulate_PanicBecomesUnexpected(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.Fund(payer, 1)
	rpc.Simulate = func([]byte) (*solana.SimulationResult, error) {
		panic("boom")
	}

	out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000})
	assert.False(t, out.Succeeded)
	assert.Equal(t, domain.FailureUnexpected, out.FailureKind)
	assert.Contains(t, out.FailureReason, "boom")
}

func TestSimulate_MalformedBlockhash(t *testing.T) {
	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.Fund(payer, 1)
	rpc.Blockhash = "not-a-hash"

	out := newSim(rpc).Simulate(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 200_000})
	assert.False(t, out.Succeeded)
	assert.Equal(t, domain.FailureUnexpected, out.FailureKind)
}

func TestSimulate_InvalidInputSkipsNetwork(t *testing.T) {
	rpc := stub.NewRPCClient()
	sim := newSim(rpc)

	out := sim.Simulate(context.Background(), newPayer(t), domain.ResourceBudgetConfig{UnitLimit: 150})
	assert.Equal(t, domain.FailureInvalidInput, out.FailureKind)

	out = sim.Simulate(context.Background(), "not base58 !", domain.ResourceBudgetConfig{UnitLimit: 1400})
	assert.Equal(t, domain.FailureInvalidInput, out.FailureKind)

	assert.Empty(t, rpc.Calls())
}

func TestSimulateInstructions_PlaceholdersPerCategory(t *testing.T) {
	instrs := []domain.InstructionDescriptor{
		{Category: domain.CategoryTransfer},
		{Category: domain.CategoryMemo},
		{Category: domain.CategoryTransfer},
		{Category: domain.CategoryToken},
	}
	got := placeholdersFor(instrs)
	assert.Equal(t, []solana.Placeholder{
		solana.PlaceholderSelfTransfer,
		solana.PlaceholderSignedMemo,
		solana.PlaceholderSignedMemo,
	}, got)

	rpc := stub.NewRPCClient()
	payer := newPayer(t)
	rpc.Fund(payer, 1)
	out := newSim(rpc).SimulateInstructions(context.Background(), payer, domain.ResourceBudgetConfig{UnitLimit: 10_000}, instrs)
	assert.True(t, out.Succeeded)
}

func TestValidateLimit(t *testing.T) {
	tests := []struct {
		limit int64
		valid bool
		msg   string
	}{
		{150, false, "Compute unit limit must be at least 200"},
		{1_500_000, false, "Compute unit limit cannot exceed 1,400,000"},
		{0, false, "Compute unit limit must be a positive integer"},
		{1400, true, ""},
		{200, true, ""},
		{1_400_000, true, ""},
	}
	for _, tt := range tests {
		res := ValidateLimit(tt.limit)
		assert.Equal(t, tt.valid, res.Valid, "limit %d", tt.limit)
		assert.Equal(t, tt.msg, res.Message, "limit %d", tt.limit)
		if !tt.valid {
			assert.ErrorIs(t, res.Err(), ErrInvalidLimit)
		}
	}

	assert.False(t, ValidateLimitValue(1400.5).Valid)
	assert.True(t, ValidateLimitValue(1400).Valid)
	assert.Equal(t, int64(50_000), RecommendedUnitsForWorkload(WorkloadDeFi))
	assert.Equal(t, int64(200_000), RecommendedUnitsForWorkload("mystery"))
}
