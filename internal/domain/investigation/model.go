package investigation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/frontdesk/internal/domain/catalog"
	"github.com/ehr/frontdesk/internal/platform/apperr"
)

// -- Status --

type Status string

const (
	StatusRequested     Status = "requested"
	StatusNotCollected  Status = "not_collected"
	StatusCollected     Status = "collected"
	StatusResultsPosted Status = "results_posted"
)

// transitions lists the statuses reachable from each status. Status never
// moves backward; results_posted may be re-entered by a later save.
var transitions = map[Status][]Status{
	StatusRequested:     {StatusNotCollected, StatusCollected, StatusResultsPosted},
	StatusNotCollected:  {StatusCollected, StatusResultsPosted},
	StatusCollected:     {StatusResultsPosted},
	StatusResultsPosted: {StatusResultsPosted},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// ValidateTransition returns a state error unless from → to is allowed.
func ValidateTransition(from, to Status) error {
	allowed, ok := transitions[from]
	if !ok {
		return apperr.State("unknown status: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return apperr.State("invalid transition from %s to %s", from, to)
}

// -- Subject --

type SubjectKind string

const (
	SubjectCatalog SubjectKind = "catalog"
	SubjectCustom  SubjectKind = "custom"
)

// Subject is what a request asks for: a catalog test or a free-text
// investigation. Exactly one of CatalogSubject and CustomSubject.
type Subject interface {
	Kind() SubjectKind
	DisplayName() string
}

// CatalogSubject snapshots the catalog entry at order time.
type CatalogSubject struct {
	TestID     int64
	TestName   string
	Parameters []catalog.Parameter
	Structured bool
}

func (CatalogSubject) Kind() SubjectKind     { return SubjectCatalog }
func (s CatalogSubject) DisplayName() string { return s.TestName }

type CustomSubject struct {
	Name string
}

func (CustomSubject) Kind() SubjectKind     { return SubjectCustom }
func (s CustomSubject) DisplayName() string { return s.Name }

type subjectJSON struct {
	Kind       SubjectKind         `json:"kind"`
	TestID     int64               `json:"test_id,omitempty"`
	Name       string              `json:"name"`
	Parameters []catalog.Parameter `json:"parameters,omitempty"`
}

func marshalSubject(s Subject) subjectJSON {
	switch v := s.(type) {
	case CatalogSubject:
		return subjectJSON{Kind: SubjectCatalog, TestID: v.TestID, Name: v.TestName, Parameters: v.Parameters}
	case CustomSubject:
		return subjectJSON{Kind: SubjectCustom, Name: v.Name}
	}
	return subjectJSON{}
}

// -- Request --

// Request maps to the investigation_request table. A provisional request
// was not accepted by the store yet and lives in the Registry under a
// temporary id.
type Request struct {
	ID          uuid.UUID        `json:"id"`
	EncounterID uuid.UUID        `json:"encounter_id"`
	Subject     Subject          `json:"-"`
	Department  string           `json:"department"`
	Modality    catalog.Modality `json:"modality"`
	Status      Status           `json:"status"`
	Notes       *string          `json:"notes,omitempty"`
	RequestedBy uuid.UUID        `json:"requested_by"`
	RequestedAt time.Time        `json:"requested_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Provisional bool             `json:"provisional"`
	Results     []*Result        `json:"results,omitempty"`
}

func (r *Request) Name() string {
	if r.Subject == nil {
		return ""
	}
	return r.Subject.DisplayName()
}

func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request
	return json.Marshal(struct {
		plain
		Name    string      `json:"name"`
		Subject subjectJSON `json:"subject"`
	}{plain(r), r.Name(), marshalSubject(r.Subject)})
}

// -- Result --

// Result maps to the investigation_result table; one row per answered
// parameter.
type Result struct {
	ID             uuid.UUID `json:"id"`
	RequestID      uuid.UUID `json:"request_id"`
	Parameter      string    `json:"parameter"`
	Value          string    `json:"value"`
	Unit           string    `json:"unit,omitempty"`
	ReferenceRange string    `json:"reference_range,omitempty"`
	Abnormal       *bool     `json:"abnormal,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	EnteredBy      uuid.UUID `json:"entered_by"`
	EnteredAt      time.Time `json:"entered_at"`
}

// StatusChange maps to the investigation_status_history table.
type StatusChange struct {
	ID         uuid.UUID `json:"id"`
	RequestID  uuid.UUID `json:"request_id"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	ChangedBy  uuid.UUID `json:"changed_by"`
	ChangedAt  time.Time `json:"changed_at"`
}

// -- Inputs --

// OrderInput is one batch of investigations for an encounter.
type OrderInput struct {
	EncounterID uuid.UUID
	TestIDs     []int64
	// CustomText, when non-blank, adds one free-text request.
	CustomText       string
	CustomDepartment string
	CustomModality   catalog.Modality
	Notes            string
	// PendingConfirmation starts the batch at requested instead of
	// not_collected.
	PendingConfirmation bool
	RequestedBy         uuid.UUID
}

// ResultValue is one entered value keyed by parameter name.
type ResultValue struct {
	Parameter string `json:"parameter"`
	Value     string `json:"value"`
	// Abnormal, when nil, is derived from the reference range if possible.
	Abnormal *bool `json:"abnormal,omitempty"`
}

type ResultInput struct {
	RequestID uuid.UUID
	Values    []ResultValue
	Notes     string
	EnteredBy uuid.UUID
}
