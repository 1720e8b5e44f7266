package simulator

import (
	"errors"
	"fmt"
	"math"

	"solana-fee-lab/internal/domain"
)

// ErrInvalidLimit is wrapped by ValidationResult.Err.
var ErrInvalidLimit = errors.New("invalid compute unit limit")

// ValidationResult is the outcome of a limit check.
type ValidationResult struct {
	Valid   bool
	Message string
}

// Err returns nil for valid results and an ErrInvalidLimit wrap otherwise.
func (v ValidationResult) Err() error {
	if v.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidLimit, v.Message)
}

// ValidateLimit checks a compute unit limit against the network bounds.
func ValidateLimit(limit int64) ValidationResult {
	switch {
	case limit <= 0:
		return ValidationResult{Message: "Compute unit limit must be a positive integer"}
	case limit < domain.MinUnitLimit:
		return ValidationResult{Message: "Compute unit limit must be at least 200"}
	case limit > domain.MaxUnitLimit:
		return ValidationResult{Message: "Compute unit limit cannot exceed 1,400,000"}
	}
	return ValidationResult{Valid: true}
}

// ValidateLimitValue validates an untyped numeric input such as a decoded
// JSON number. Fractions, NaN and infinities are not positive integers.
func ValidateLimitValue(v float64) ValidationResult {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || v <= 0 {
		return ValidationResult{Message: "Compute unit limit must be a positive integer"}
	}
	if v > math.MaxInt64/2 {
		return ValidateLimit(math.MaxInt64)
	}
	return ValidateLimit(int64(v))
}

// Workload is a coarse description of what a transaction does.
type Workload string

// Workloads.
const (
	WorkloadSimple Workload = "simple"
	WorkloadToken  Workload = "token"
	WorkloadDeFi   Workload = "defi"
	WorkloadNFT    Workload = "nft"
	WorkloadCustom Workload = "custom"
)

// RecommendedUnitsForWorkload returns a starting compute unit limit.
// Unknown workloads get the custom allowance.
func RecommendedUnitsForWorkload(w Workload) int64 {
	switch w {
	case WorkloadSimple:
		return 1_400
	case WorkloadToken:
		return 10_000
	case WorkloadDeFi:
		return 50_000
	case WorkloadNFT:
		return 25_000
	}
	return 200_000
}
