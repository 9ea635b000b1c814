// Package enrichment joins encounters with patient and staff records for
// list views. Missing relations degrade to placeholders; they never fail a
// view.
package enrichment

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/frontdesk/internal/domain/encounter"
	"github.com/ehr/frontdesk/internal/domain/identity"
)

// EncounterView is one row of the encounter list screen.
type EncounterView struct {
	ID                uuid.UUID        `json:"id"`
	Number            string           `json:"encounter_number"`
	Type              string           `json:"type"`
	Priority          string           `json:"priority"`
	InsuranceCategory *string          `json:"insurance_category,omitempty"`
	Status            encounter.Status `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	ClosedAt          *time.Time       `json:"closed_at,omitempty"`
	NextAppointmentAt *time.Time       `json:"next_appointment_at,omitempty"`
	PatientID         uuid.UUID        `json:"patient_id"`
	PatientName       string           `json:"patient_name"`
	PatientAge        *int             `json:"patient_age"`
	ProviderID        uuid.UUID        `json:"provider_id"`
	ProviderName      string           `json:"provider_name"`
}

func PatientPlaceholder(id uuid.UUID) string  { return "Patient #" + id.String() }
func ProviderPlaceholder(id uuid.UUID) string { return "Provider #" + id.String() }

// EnrichEncounters builds list rows. Names come from the fragment joined
// onto the encounter, then the lookup maps, then a placeholder. Either map
// may be nil.
func EnrichEncounters(encs []*encounter.Encounter, patients map[uuid.UUID]*identity.Patient, staff map[uuid.UUID]*identity.Staff, now time.Time) []EncounterView {
	views := make([]EncounterView, 0, len(encs))
	for _, e := range encs {
		if e == nil {
			continue
		}
		v := EncounterView{
			ID:                e.ID,
			Number:            e.Number,
			Type:              e.Type,
			Priority:          e.Priority,
			InsuranceCategory: e.InsuranceCategory,
			Status:            e.Status,
			CreatedAt:         e.CreatedAt,
			ClosedAt:          e.ClosedAt,
			NextAppointmentAt: e.NextAppointmentAt,
			PatientID:         e.PatientID,
			ProviderID:        e.ProviderID,
		}
		v.PatientName, v.PatientAge = patientName(e, patients, now)
		v.ProviderName = providerName(e, staff)
		views = append(views, v)
	}
	return views
}

func patientName(e *encounter.Encounter, patients map[uuid.UUID]*identity.Patient, now time.Time) (string, *int) {
	var (
		name string
		dob  *time.Time
	)
	if e.Patient != nil {
		name, dob = e.Patient.Name, e.Patient.BirthDate
	}
	if p := patients[e.PatientID]; p != nil {
		if name == "" {
			name = p.DisplayName()
		}
		if dob == nil {
			dob = p.BirthDate
		}
	}
	if name == "" {
		name = PatientPlaceholder(e.PatientID)
	}
	return name, Age(dob, now)
}

func providerName(e *encounter.Encounter, staff map[uuid.UUID]*identity.Staff) string {
	if e.Provider != nil && e.Provider.Name != "" {
		return e.Provider.Name
	}
	if s := staff[e.ProviderID]; s != nil {
		if name := s.DisplayName(); name != "" {
			return name
		}
	}
	return ProviderPlaceholder(e.ProviderID)
}

// Age is the number of whole years between dob and now, or nil when the
// date of birth is unknown or in the future.
func Age(dob *time.Time, now time.Time) *int {
	if dob == nil || dob.IsZero() {
		return nil
	}
	b := dob.UTC()
	n := now.UTC()
	if n.Before(b) {
		return nil
	}
	years := n.Year() - b.Year()
	if n.Month() < b.Month() || (n.Month() == b.Month() && n.Day() < b.Day()) {
		years--
	}
	return &years
}
