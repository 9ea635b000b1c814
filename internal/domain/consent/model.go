package consent

import (
	"time"

	"github.com/google/uuid"
)

// Type maps to the consent_type table.
type Type struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
	Mandatory   bool   `db:"mandatory" json:"mandatory"`
	OTPRequired bool   `db:"otp_required" json:"otp_required"`
}

// Record maps to the patient_consent table, one row per patient and type.
type Record struct {
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	ConsentTypeID int64      `db:"consent_type_id" json:"consent_type_id"`
	Granted       bool       `db:"granted" json:"granted"`
	OTPVerified   bool       `db:"otp_verified" json:"otp_verified"`
	Bypassed      bool       `db:"bypassed" json:"bypassed"`
	RecordedBy    *uuid.UUID `db:"recorded_by" json:"recorded_by,omitempty"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// AuditEntry maps to the consent_audit table, one row per save.
type AuditEntry struct {
	ID             int64      `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	ActorID        *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	GrantedTypeIDs []int64    `db:"granted_type_ids" json:"granted_type_ids"`
	OTPVerified    bool       `db:"otp_verified" json:"otp_verified"`
	Bypassed       bool       `db:"bypassed" json:"bypassed"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// OTPRequired reports whether any granted type demands OTP verification.
// Grants naming unknown types are ignored.
func OTPRequired(grants map[int64]bool, types []*Type) bool {
	if len(grants) == 0 {
		return false
	}
	for _, t := range types {
		if t.OTPRequired && grants[t.ID] {
			return true
		}
	}
	return false
}

// State is a patient's current grant map.
type State struct {
	PatientID   uuid.UUID      `json:"patient_id"`
	Grants      map[int64]bool `json:"grants"`
	Records     []*Record      `json:"records"`
	Types       []*Type        `json:"types"`
	OTPRequired bool           `json:"otp_required"`
}

// Challenge describes a sent OTP.
type Challenge struct {
	Phone       string    `json:"phone"`
	ExpiresAt   time.Time `json:"expires_at"`
	ResendAfter time.Time `json:"resend_after"`
}

type SaveInput struct {
	PatientID uuid.UUID
	Grants    map[int64]bool
	// OTPVerified claims a successful VerifyOTP; it is checked against the
	// OTP store and consumed.
	OTPVerified bool
	// AllowBypass saves OTP-required grants without verification. Audited.
	AllowBypass bool
	ActorID     *uuid.UUID
}
