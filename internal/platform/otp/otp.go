// Package otp generates one-time codes and tracks their lifecycle: expiry,
// resend cooldown, attempt limits and the one-shot "verified" marker that a
// consent save consumes.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrInvalidLength   = errors.New("otp length must be between 4 and 10")
	ErrMismatch        = errors.New("otp does not match")
	ErrExpired         = errors.New("otp expired or not requested")
	ErrTooManyAttempts = errors.New("too many otp attempts")
)

const (
	DefaultLength = 6
	MinLength     = 4
	MaxLength     = 10
)

// Generate returns a zero-padded numeric code from crypto/rand.
func Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", ErrInvalidLength
	}

	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate random number: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// Ambiguous characters (0, O, I, 1, L) are left out.
const alphanumeric = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateAlphanumeric returns a random uppercase code, used for encounter
// number suffixes.
func GenerateAlphanumeric(length int) (string, error) {
	if length < 1 {
		return "", errors.New("length must be at least 1")
	}

	out := make([]byte, length)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate random character: %w", err)
		}
		out[i] = alphanumeric[n.Int64()]
	}
	return string(out), nil
}

// Hash is the hex sha256 of the trimmed code. Only hashes are stored.
func Hash(code string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(code)))
	return hex.EncodeToString(sum[:])
}

// Verify compares code against hash in constant time.
func Verify(hash, code string) error {
	if subtle.ConstantTimeCompare([]byte(hash), []byte(Hash(code))) != 1 {
		return ErrMismatch
	}
	return nil
}
