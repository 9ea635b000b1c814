package investigation

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ehr/frontdesk/internal/domain/catalog"
	"github.com/ehr/frontdesk/internal/platform/fhir"
)

const (
	catalogSystem        = "urn:frontdesk:investigation-test"
	categorySystem       = "http://terminology.hl7.org/CodeSystem/observation-category"
	interpretationSystem = "http://terminology.hl7.org/CodeSystem/v3-ObservationInterpretation"
)

// ServiceRequestResource is the FHIR R4 projection of a Request. Results are
// contained as Observations.
type ServiceRequestResource struct {
	ResourceType string                 `json:"resourceType"`
	ID           string                 `json:"id"`
	Meta         *fhir.Meta             `json:"meta,omitempty"`
	Contained    []ObservationResource  `json:"contained,omitempty"`
	Status       string                 `json:"status"`
	Intent       string                 `json:"intent"`
	Category     []fhir.CodeableConcept `json:"category,omitempty"`
	Code         *fhir.CodeableConcept  `json:"code"`
	Encounter    *fhir.Reference        `json:"encounter"`
	Requester    *fhir.Reference        `json:"requester,omitempty"`
	AuthoredOn   *time.Time             `json:"authoredOn,omitempty"`
	Note         []fhir.Annotation      `json:"note,omitempty"`
}

func (r ServiceRequestResource) FHIRType() string { return "ServiceRequest" }
func (r ServiceRequestResource) FHIRID() string   { return r.ID }

type ObservationResource struct {
	ResourceType   string                 `json:"resourceType"`
	ID             string                 `json:"id"`
	Status         string                 `json:"status"`
	Code           *fhir.CodeableConcept  `json:"code"`
	ValueQuantity  *fhir.Quantity         `json:"valueQuantity,omitempty"`
	ValueString    string                 `json:"valueString,omitempty"`
	Interpretation []fhir.CodeableConcept `json:"interpretation,omitempty"`
	ReferenceRange []ReferenceRange       `json:"referenceRange,omitempty"`
	Performer      []fhir.Reference       `json:"performer,omitempty"`
	Issued         *time.Time             `json:"issued,omitempty"`
	Note           []fhir.Annotation      `json:"note,omitempty"`
}

type ReferenceRange struct {
	Text string `json:"text"`
}

// fhirStatus maps the workflow status onto ServiceRequest.status.
func fhirStatus(s Status) string {
	switch s {
	case StatusRequested:
		return "draft"
	case StatusResultsPosted:
		return "completed"
	default:
		return "active"
	}
}

func (r *Request) ToFHIR() ServiceRequestResource {
	updated := r.UpdatedAt
	requested := r.RequestedAt
	res := ServiceRequestResource{
		ResourceType: "ServiceRequest",
		ID:           r.ID.String(),
		Meta:         &fhir.Meta{LastUpdated: &updated},
		Status:       fhirStatus(r.Status),
		Intent:       "order",
		Encounter:    fhir.Ref("Encounter", r.EncounterID.String(), ""),
		AuthoredOn:   &requested,
	}
	if r.Provisional {
		res.Meta.VersionID = "provisional"
	}

	switch s := r.Subject.(type) {
	case CatalogSubject:
		res.Code = fhir.Concept(catalogSystem, strconv.FormatInt(s.TestID, 10), s.TestName)
	default:
		res.Code = &fhir.CodeableConcept{Text: r.Name()}
	}
	if r.Modality == catalog.ModalityImaging {
		res.Category = []fhir.CodeableConcept{*fhir.Concept(categorySystem, "imaging", "Imaging")}
	} else {
		res.Category = []fhir.CodeableConcept{*fhir.Concept(categorySystem, "laboratory", "Laboratory")}
	}
	if r.RequestedBy != uuid.Nil {
		res.Requester = fhir.Ref("Practitioner", r.RequestedBy.String(), "")
	}
	if r.Notes != nil {
		res.Note = []fhir.Annotation{{Text: *r.Notes}}
	}
	for _, result := range r.Results {
		res.Contained = append(res.Contained, result.ToFHIR())
	}
	return res
}

func (res *Result) ToFHIR() ObservationResource {
	entered := res.EnteredAt
	obs := ObservationResource{
		ResourceType: "Observation",
		ID:           res.ID.String(),
		Status:       "final",
		Code:         &fhir.CodeableConcept{Text: res.Parameter},
		Performer:    []fhir.Reference{*fhir.Ref("Practitioner", res.EnteredBy.String(), "")},
		Issued:       &entered,
	}
	if d, err := decimal.NewFromString(res.Value); err == nil {
		f := d.InexactFloat64()
		obs.ValueQuantity = &fhir.Quantity{Value: &f, Unit: res.Unit}
	} else {
		obs.ValueString = res.Value
	}
	if res.ReferenceRange != "" {
		obs.ReferenceRange = []ReferenceRange{{Text: res.ReferenceRange}}
	}
	if res.Abnormal != nil {
		code, display := "N", "Normal"
		if *res.Abnormal {
			code, display = "A", "Abnormal"
		}
		obs.Interpretation = []fhir.CodeableConcept{*fhir.Concept(interpretationSystem, code, display)}
	}
	if res.Notes != nil {
		obs.Note = []fhir.Annotation{{Text: *res.Notes}}
	}
	return obs
}
