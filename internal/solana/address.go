package solana

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned for malformed account addresses.
var ErrInvalidAddress = errors.New("invalid address")

// ValidateAddress checks that s is a base58-encoded 32-byte public key.
func ValidateAddress(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidAddress, len(raw))
	}
	return nil
}

// IsOnCurve reports whether a valid address is an ed25519 point, i.e. can
// belong to a keypair. Program-derived addresses are off curve and cannot pay fees.
func IsOnCurve(s string) bool {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

// ValidatePayer checks that s can act as a fee payer.
func ValidatePayer(s string) error {
	if err := ValidateAddress(s); err != nil {
		return err
	}
	if !IsOnCurve(s) {
		return fmt.Errorf("%w: %s is off curve and cannot sign", ErrInvalidAddress, s)
	}
	return nil
}
