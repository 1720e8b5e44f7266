package idhash

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeExportID computes a deterministic export_id using SHA256.
// Formula: SHA256(payer|payload)
// Returns hex-encoded hash (64 characters).
func ComputeExportID(payer string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(payer))
	h.Write([]byte{'|'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
