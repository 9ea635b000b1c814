package triage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Vitals holds the measurements of one triage. Values are stored as
// entered; nothing checks clinical plausibility.
type Vitals struct {
	StatusCategory   *string    `db:"status_category" json:"status_category,omitempty"`
	Temperature      *float64   `db:"temperature" json:"temperature,omitempty"`
	HeartRate        *int       `db:"heart_rate" json:"heart_rate,omitempty"`
	SystolicBP       *int       `db:"systolic_bp" json:"systolic_bp,omitempty"`
	DiastolicBP      *int       `db:"diastolic_bp" json:"diastolic_bp,omitempty"`
	RespiratoryRate  *int       `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	OxygenSaturation *float64   `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
	Weight           *float64   `db:"weight_kg" json:"weight,omitempty"`
	Height           *float64   `db:"height_cm" json:"height,omitempty"`
	MUAC             *float64   `db:"muac_cm" json:"muac,omitempty"`
	LMPDate          *time.Time `db:"lmp_date" json:"lmp_date,omitempty"`
}

// Entry maps to the triage_entry table. Entries are append-only.
type Entry struct {
	ID          int64      `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	EncounterID *uuid.UUID `db:"encounter_id" json:"encounter_id,omitempty"`
	Vitals
	Comments   *string    `db:"comments" json:"comments,omitempty"`
	RecordedBy *uuid.UUID `db:"recorded_by" json:"recorded_by,omitempty"`
	CapturedAt time.Time  `db:"captured_at" json:"captured_at"`

	// BMI is derived on read.
	BMI *float64 `db:"-" json:"bmi,omitempty"`
}

// ComputeBMI returns kg/m² rounded to one decimal, or nil unless both weight
// and height are positive. Height is in centimetres.
func ComputeBMI(weightKg, heightCm *float64) *float64 {
	if weightKg == nil || heightCm == nil || *weightKg <= 0 || *heightCm <= 0 {
		return nil
	}
	w := decimal.NewFromFloat(*weightKg)
	h := decimal.NewFromFloat(*heightCm).Div(decimal.NewFromInt(100))
	bmi := w.Div(h.Mul(h)).Round(1).InexactFloat64()
	return &bmi
}

// Newer reports whether e sorts after other: later capture time, ties by id.
func (e *Entry) Newer(other *Entry) bool {
	if !e.CapturedAt.Equal(other.CapturedAt) {
		return e.CapturedAt.After(other.CapturedAt)
	}
	return e.ID > other.ID
}
