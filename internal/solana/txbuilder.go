package solana

import (
	"fmt"
	"math"

	solanago "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
)

// MemoProgramID is the SPL memo program.
const MemoProgramID = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

// Memo texts carried by probe transactions.
const (
	PrimaryMemo = "Transaction simulation test"
	MinimalMemo = "Simulation test - no signature required"
)

var memoProgram = solanago.MustPublicKeyFromBase58(MemoProgramID)

// Placeholder is a balance-neutral stand-in instruction for a probe.
type Placeholder int

// Placeholder kinds.
const (
	PlaceholderSignedMemo   Placeholder = iota // memo signed by the payer
	PlaceholderSelfTransfer                    // 0-lamport transfer from payer to itself
	PlaceholderUnsignedMemo                    // memo with no account keys
)

// ProbeSpec describes a probe transaction.
type ProbeSpec struct {
	Payer        string
	Blockhash    string
	UnitLimit    int64
	UnitPrice    *uint64 // micro-lamports; nil or 0 omits the price instruction
	Placeholders []Placeholder
}

// BuildProbe assembles an unsigned probe transaction and returns its wire bytes.
// Signature slots are zero-filled; the node is asked to skip verification.
func BuildProbe(spec ProbeSpec) ([]byte, error) {
	payer, err := solanago.PublicKeyFromBase58(spec.Payer)
	if err != nil {
		return nil, fmt.Errorf("%w: payer: %v", ErrInvalidAddress, err)
	}
	hash, err := solanago.HashFromBase58(spec.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("parse blockhash: %w", err)
	}
	if spec.UnitLimit <= 0 || spec.UnitLimit > math.MaxUint32 {
		return nil, fmt.Errorf("unit limit %d out of range", spec.UnitLimit)
	}

	ixs := []solanago.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(uint32(spec.UnitLimit)).Build(),
	}
	if spec.UnitPrice != nil && *spec.UnitPrice > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitPriceInstruction(*spec.UnitPrice).Build())
	}

	placeholders := spec.Placeholders
	if len(placeholders) == 0 {
		placeholders = []Placeholder{PlaceholderSignedMemo}
	}
	for _, p := range placeholders {
		ixs = append(ixs, placeholderInstruction(p, payer))
	}

	tx, err := solanago.NewTransaction(ixs, hash, solanago.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	tx.Signatures = make([]solanago.Signature, tx.Message.Header.NumRequiredSignatures)

	out, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}
	return out, nil
}

func placeholderInstruction(p Placeholder, payer solanago.PublicKey) solanago.Instruction {
	switch p {
	case PlaceholderSelfTransfer:
		return system.NewTransferInstruction(0, payer, payer).Build()
	case PlaceholderUnsignedMemo:
		return solanago.NewInstruction(memoProgram, solanago.AccountMetaSlice{}, []byte(MinimalMemo))
	default:
		return solanago.NewInstruction(memoProgram, solanago.AccountMetaSlice{
			solanago.NewAccountMeta(payer, false, true),
		}, []byte(PrimaryMemo))
	}
}
