// Package stub provides an in-memory Solana network for tests.
package stub

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/solana"
)

// ErrUnreachable simulates a transport failure.
var ErrUnreachable = errors.New("stub: network unreachable")

// DefaultBlockhash is returned by GetLatestBlockhash unless overridden.
const DefaultBlockhash = "11111111111111111111111111111111"

// RPCClient implements solana.RPCClient in memory. Every method can be made to
// fail or block through the exported hooks. Safe for concurrent use.
type RPCClient struct {
	mu sync.Mutex

	Accounts     map[string]*solana.AccountInfo
	Balances     map[string]uint64
	Blockhash    string
	Fees         []domain.FeeSample
	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo

	// Simulate returns the dry-run result for a payload. Defaults to a success
	// that consumes 150 units for the compute budget program.
	Simulate func(payload []byte) (*solana.SimulationResult, error)

	// Err overrides the result of a method by name (e.g. "getBalance").
	Err map[string]error

	// Block, when set, makes every call wait on ctx before returning.
	Block bool

	calls []string
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:     make(map[string]*solana.AccountInfo),
		Balances:     make(map[string]uint64),
		Blockhash:    DefaultBlockhash,
		Transactions: make(map[string]*solana.Transaction),
		Signatures:   make(map[string][]solana.SignatureInfo),
		Err:          make(map[string]error),
	}
}

// Fund creates an account holding lamports.
func (c *RPCClient) Fund(address string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[address] = &solana.AccountInfo{Lamports: lamports, Owner: "11111111111111111111111111111111"}
	c.Balances[address] = lamports
}

// FailWith makes method return err.
func (c *RPCClient) FailWith(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err[method] = err
}

// Calls returns the methods invoked so far, in order.
func (c *RPCClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *RPCClient) enter(ctx context.Context, method string) error {
	c.mu.Lock()
	c.calls = append(c.calls, method)
	block := c.Block
	err := c.Err[method]
	c.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

// GetAccountInfo returns the funded account or nil.
func (c *RPCClient) GetAccountInfo(ctx context.Context, address string) (*solana.AccountInfo, error) {
	if err := c.enter(ctx, "getAccountInfo"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.Accounts[address]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

// GetBalance returns the stored balance, zero when unknown.
func (c *RPCClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	if err := c.enter(ctx, "getBalance"); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Balances[address], nil
}

// GetLatestBlockhash returns Blockhash.
func (c *RPCClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	if err := c.enter(ctx, "getLatestBlockhash"); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Blockhash, nil
}

// SimulateTransaction runs the Simulate hook.
func (c *RPCClient) SimulateTransaction(ctx context.Context, payload []byte) (*solana.SimulationResult, error) {
	if err := c.enter(ctx, "simulateTransaction"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	sim := c.Simulate
	c.mu.Unlock()
	if sim == nil {
		return SuccessResult(150, 200_000), nil
	}
	return sim(payload)
}

// GetRecentPrioritizationFees returns Fees regardless of the filter.
func (c *RPCClient) GetRecentPrioritizationFees(ctx context.Context, _ []string) ([]domain.FeeSample, error) {
	if err := c.enter(ctx, "getRecentPrioritizationFees"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.FeeSample, len(c.Fees))
	copy(out, c.Fees)
	return out, nil
}

// GetTransaction returns a stored transaction or nil.
func (c *RPCClient) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	if err := c.enter(ctx, "getTransaction"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Transactions[signature], nil
}

// GetSignaturesForAddress returns stored signatures newest first, honoring Until and Limit.
func (c *RPCClient) GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if err := c.enter(ctx, "getSignaturesForAddress"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []solana.SignatureInfo
	for _, s := range c.Signatures[address] {
		if opts != nil && opts.Until != "" && s.Signature == opts.Until {
			break
		}
		out = append(out, s)
	}
	if opts != nil && opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// AddTransaction stores a transaction and indexes its signature under payer.
func (c *RPCClient) AddTransaction(payer string, tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
	bt := tx.BlockTime
	info := solana.SignatureInfo{Signature: tx.Signature, Slot: tx.Slot, BlockTime: &bt}
	if tx.Meta != nil {
		info.Err = tx.Meta.Err
	}
	c.Signatures[payer] = append([]solana.SignatureInfo{info}, c.Signatures[payer]...)
}

// SuccessResult is a successful dry-run consuming units of limit.
func SuccessResult(units, limit int64) *solana.SimulationResult {
	return &solana.SimulationResult{
		Logs:          ConsumedLogs(units, limit),
		UnitsConsumed: &units,
	}
}

// FailureResult is a dry-run rejected with err (decoded JSON shape).
func FailureResult(err interface{}) *solana.SimulationResult {
	return &solana.SimulationResult{
		Err:  err,
		Logs: []string{"Program " + solana.MemoProgramID + " invoke [1]", "Program " + solana.MemoProgramID + " failed"},
	}
}

// ConsumedLogs returns a memo invocation that consumed units of limit.
func ConsumedLogs(units, limit int64) []string {
	return []string{
		"Program ComputeBudget111111111111111111111111111111 invoke [1]",
		"Program ComputeBudget111111111111111111111111111111 success",
		"Program " + solana.MemoProgramID + " invoke [1]",
		"Program log: Memo (len 27): \"" + solana.PrimaryMemo + "\"",
		"Program " + solana.MemoProgramID + " consumed " + strconv.FormatInt(units, 10) + " of " + strconv.FormatInt(limit, 10) + " compute units",
		"Program " + solana.MemoProgramID + " success",
	}
}
