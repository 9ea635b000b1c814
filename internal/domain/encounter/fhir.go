package encounter

import "github.com/ehr/frontdesk/internal/platform/fhir"

const (
	actCodeSystem     = "http://terminology.hl7.org/CodeSystem/v3-ActCode"
	actPrioritySystem = "http://terminology.hl7.org/CodeSystem/v3-ActPriority"
	numberSystem      = "urn:frontdesk:encounter-number"
	typeSystem        = "urn:frontdesk:encounter-type"
)

type EncounterResource struct {
	ResourceType string                 `json:"resourceType"`
	ID           string                 `json:"id"`
	Meta         *fhir.Meta             `json:"meta,omitempty"`
	Identifier   []fhir.Identifier      `json:"identifier,omitempty"`
	Status       string                 `json:"status"`
	Class        fhir.Coding            `json:"class"`
	Type         []fhir.CodeableConcept `json:"type,omitempty"`
	Priority     *fhir.CodeableConcept  `json:"priority,omitempty"`
	Subject      *fhir.Reference        `json:"subject"`
	Participant  []Participant          `json:"participant,omitempty"`
	Period       *fhir.Period           `json:"period,omitempty"`
	ReasonCode   []fhir.CodeableConcept `json:"reasonCode,omitempty"`
}

type Participant struct {
	Type       []fhir.CodeableConcept `json:"type,omitempty"`
	Individual *fhir.Reference        `json:"individual"`
}

func (r EncounterResource) FHIRType() string { return "Encounter" }
func (r EncounterResource) FHIRID() string   { return r.ID }

// fhirPriority maps local priority labels onto v3-ActPriority codes.
var fhirPriority = map[string]string{
	"emergency": "EM",
	"urgent":    "UR",
	"normal":    "R",
	"routine":   "R",
	"elective":  "EL",
}

func (e *Encounter) ToFHIR() EncounterResource {
	updated := e.UpdatedAt
	created := e.CreatedAt
	res := EncounterResource{
		ResourceType: "Encounter",
		ID:           e.ID.String(),
		Meta:         &fhir.Meta{LastUpdated: &updated},
		Identifier:   []fhir.Identifier{{System: numberSystem, Value: e.Number}},
		Status:       "in-progress",
		Class:        fhir.Coding{System: actCodeSystem, Code: "AMB", Display: "ambulatory"},
		Type:         []fhir.CodeableConcept{*fhir.Concept(typeSystem, e.Type, e.Type)},
		Period:       &fhir.Period{Start: &created},
	}
	if e.Status == StatusClosed {
		res.Status = "finished"
		res.Period.End = e.ClosedAt
	}

	patientName := ""
	if e.Patient != nil {
		patientName = e.Patient.Name
	}
	res.Subject = fhir.Ref("Patient", e.PatientID.String(), patientName)

	providerName := ""
	if e.Provider != nil {
		providerName = e.Provider.Name
	}
	res.Participant = []Participant{{
		Type:       []fhir.CodeableConcept{*fhir.Concept("http://terminology.hl7.org/CodeSystem/v3-ParticipationType", "ATND", "attender")},
		Individual: fhir.Ref("Practitioner", e.ProviderID.String(), providerName),
	}}

	if code, ok := fhirPriority[e.Priority]; ok {
		res.Priority = fhir.Concept(actPrioritySystem, code, e.Priority)
	}
	if e.Notes != nil {
		res.ReasonCode = []fhir.CodeableConcept{{Text: *e.Notes}}
	}
	return res
}
