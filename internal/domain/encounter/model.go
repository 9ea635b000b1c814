package encounter

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/frontdesk/internal/platform/otp"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

const (
	DefaultType     = "consultation"
	DefaultPriority = "normal"
)

// Encounter maps to the encounter table. Closed is terminal; a closed visit
// is continued by opening a new encounter.
type Encounter struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	Number            string     `db:"encounter_number" json:"encounter_number"`
	Type              string     `db:"encounter_type" json:"type"`
	Priority          string     `db:"priority" json:"priority"`
	InsuranceCategory *string    `db:"insurance_category" json:"insurance_category,omitempty"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProviderID        uuid.UUID  `db:"provider_id" json:"provider_id"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`
	Status            Status     `db:"status" json:"status"`
	ClosedAt          *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	NextAppointmentAt *time.Time `db:"next_appointment_at" json:"next_appointment_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`

	// Joined display fragments. Nil when the related row is missing.
	Patient  *Party `db:"-" json:"patient,omitempty"`
	Provider *Party `db:"-" json:"provider,omitempty"`
}

// Party is the slice of a patient or staff row that list queries join onto
// an encounter.
type Party struct {
	Name      string     `json:"name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
}

func (e *Encounter) IsOpen() bool { return e.Status == StatusOpen }

// OpenInput carries the fields of a new encounter. Type and Priority fall
// back to DefaultType and DefaultPriority.
type OpenInput struct {
	PatientID         uuid.UUID `json:"patient_id"`
	ProviderID        uuid.UUID `json:"provider_id"`
	Type              string    `json:"type"`
	Priority          string    `json:"priority"`
	InsuranceCategory string    `json:"insurance_category"`
	Notes             string    `json:"notes"`
}

type CloseInput struct {
	Notes             *string    `json:"notes"`
	ClosedAt          *time.Time `json:"closed_at"`
	NextAppointmentAt *time.Time `json:"next_appointment_at"`
}

// CloseResult reports the closed encounter and how many of its
// investigation requests had not reached results_posted.
type CloseResult struct {
	Encounter             *Encounter `json:"encounter"`
	PendingInvestigations int        `json:"pending_investigations"`
}

type Filter struct {
	PatientID *uuid.UUID
	Status    Status
}

const numberSuffixLen = 4

// NewNumber issues an encounter number: "ENC", the creation time as
// yymmddhhmmss, and a random alphanumeric suffix.
func NewNumber(at time.Time) (string, error) {
	suffix, err := otp.GenerateAlphanumeric(numberSuffixLen)
	if err != nil {
		return "", fmt.Errorf("encounter number suffix: %w", err)
	}
	return "ENC" + at.UTC().Format("060102150405") + "-" + suffix, nil
}
