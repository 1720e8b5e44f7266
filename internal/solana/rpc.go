// Package solana is the network collaborator: a JSON-RPC client, a logs
// subscription client, probe transaction assembly and log parsing helpers.
package solana

import (
	"context"

	"solana-fee-lab/internal/domain"
)

// RPCClient defines the Solana RPC HTTP interface used by this module.
type RPCClient interface {
	// GetAccountInfo returns nil, nil when the account does not exist.
	GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error)

	// GetBalance returns the account balance in lamports.
	GetBalance(ctx context.Context, address string) (uint64, error)

	// GetLatestBlockhash returns the most recent blockhash (base58).
	GetLatestBlockhash(ctx context.Context) (string, error)

	// SimulateTransaction dry-runs a serialized transaction.
	SimulateTransaction(ctx context.Context, payload []byte) (*SimulationResult, error)

	// GetRecentPrioritizationFees returns per-slot fees, optionally filtered by locked accounts.
	GetRecentPrioritizationFees(ctx context.Context, accounts []string) ([]domain.FeeSample, error)

	// GetTransaction retrieves a transaction by signature. Returns nil, nil if not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)
}

// Transaction represents a landed Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err                  interface{}
	Fee                  uint64 // lamports
	ComputeUnitsConsumed *int64 // nil on nodes that do not report it
	LogMessages          []string
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}
