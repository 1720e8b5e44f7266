package feestats

import (
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseFee is the per-signature base fee in lamports.
const DefaultBaseFee int64 = 5000

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL int64 = 1_000_000_000

// StaleAfter is the age after which a fee estimate is considered stale.
const StaleAfter = 60 * time.Second

var (
	microPerLamport = decimal.NewFromInt(1_000_000)
	maxLamports     = decimal.NewFromInt(math.MaxInt64)
)

// TotalCost returns baseFee + round(units * unitPrice / 1e6) lamports.
// unitPrice is in micro-lamports per compute unit. Results beyond int64
// saturate at math.MaxInt64.
func TotalCost(units int64, unitPrice uint64, baseFee int64) int64 {
	total := decimal.NewFromInt(units).
		Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(unitPrice), 0)).
		Div(microPerLamport).
		Round(0).
		Add(decimal.NewFromInt(baseFee))
	if total.GreaterThan(maxLamports) {
		return math.MaxInt64
	}
	return total.IntPart()
}

// PriorityFee returns the prioritization part of TotalCost.
func PriorityFee(units int64, unitPrice uint64) int64 {
	return TotalCost(units, unitPrice, 0)
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports int64) decimal.Decimal {
	return decimal.New(lamports, -9)
}

// FormatSOL renders an amount for display. Amounts below 0.000001 SOL
// are shown in lamports.
func FormatSOL(lamports int64) string {
	if lamports != 0 && lamports < 1000 && lamports > -1000 {
		return decimal.NewFromInt(lamports).String() + " lamports"
	}
	return LamportsToSOL(lamports).StringFixed(6) + " SOL"
}

// IsStale reports whether an estimate fetched at fetchedAt (Unix ms) is stale at now.
func IsStale(fetchedAt int64, now time.Time) bool {
	return now.Sub(time.UnixMilli(fetchedAt)) > StaleAfter
}
