package otp

import (
	"context"
	"fmt"
	"time"
)

type Config struct {
	TTL         time.Duration
	Cooldown    time.Duration
	VerifiedTTL time.Duration
	MaxAttempts int
	KeyPrefix   string
}

func DefaultConfig() Config {
	return Config{
		TTL:         5 * time.Minute,
		Cooldown:    60 * time.Second,
		VerifiedTTL: 10 * time.Minute,
		MaxAttempts: 5,
		KeyPrefix:   "consent-otp",
	}
}

// Pending describes an issued code.
type Pending struct {
	ExpiresAt   time.Time `json:"expires_at"`
	ResendAfter time.Time `json:"resend_after"`
}

// CooldownError is returned by Issue while a previous code is still inside
// its resend cooldown.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("otp resend blocked for another %s", e.Remaining.Round(time.Second))
}

// Store keeps hashed codes keyed by subject (a patient id).
type Store interface {
	// Issue stores hash for subject unless a cooldown is active, resetting
	// attempts and any earlier verification.
	Issue(ctx context.Context, subject, hash string) (Pending, error)
	// Release drops the code and cooldown, used when delivery failed.
	Release(ctx context.Context, subject string) error
	// Verify checks code and, on success, marks subject verified.
	Verify(ctx context.Context, subject, code string) error
	// ConsumeVerified reports whether subject was verified and clears the mark.
	ConsumeVerified(ctx context.Context, subject string) (bool, error)
	// RestoreVerified puts back a mark taken by ConsumeVerified when the
	// write it guarded did not commit.
	RestoreVerified(ctx context.Context, subject string) error
}
