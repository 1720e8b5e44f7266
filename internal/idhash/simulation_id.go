package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeSimulationID computes a deterministic record_id using SHA256.
// Formula: SHA256(payer|unit_limit|unit_price|simulated_at)
// An absent unit price hashes as "-" so it differs from an explicit zero.
// Returns hex-encoded hash (64 characters).
func ComputeSimulationID(
	payer string,
	unitLimit int64,
	unitPrice *uint64,
	simulatedAt int64,
) string {
	priceStr := "-"
	if unitPrice != nil {
		priceStr = fmt.Sprintf("%d", *unitPrice)
	}

	data := fmt.Sprintf("%s|%d|%s|%d",
		payer,
		unitLimit,
		priceStr,
		simulatedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
