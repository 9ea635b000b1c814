package fhir

import (
	"encoding/json"
	"testing"
	"time"
)

type fakeResource struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
}

func (f fakeResource) FHIRType() string { return f.ResourceType }
func (f fakeResource) FHIRID() string   { return f.ID }

func TestNewSearchBundle(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	b, err := NewSearchBundle([]Identified{
		fakeResource{ResourceType: "ServiceRequest", ID: "a"},
		fakeResource{ResourceType: "ServiceRequest", ID: "b"},
	}, "/fhir/ServiceRequest?encounter=e1", now)
	if err != nil {
		t.Fatalf("NewSearchBundle: %v", err)
	}
	if b.Type != "searchset" || *b.Total != 2 {
		t.Errorf("unexpected bundle header: %s %d", b.Type, *b.Total)
	}
	if b.Entry[1].FullURL != "ServiceRequest/b" {
		t.Errorf("unexpected fullUrl %s", b.Entry[1].FullURL)
	}
	var got fakeResource
	if err := json.Unmarshal(b.Entry[0].Resource, &got); err != nil || got.ID != "a" {
		t.Errorf("unexpected entry resource %s (%v)", b.Entry[0].Resource, err)
	}
}

func TestNewSearchBundle_Empty(t *testing.T) {
	b, err := NewSearchBundle(nil, "/fhir/ServiceRequest", time.Now())
	if err != nil {
		t.Fatalf("NewSearchBundle: %v", err)
	}
	if *b.Total != 0 || len(b.Entry) != 0 {
		t.Errorf("expected empty bundle, got %+v", b)
	}
}

func TestOutcomesAndReferences(t *testing.T) {
	o := NotFoundOutcome("Encounter", "42")
	if o.ResourceType != "OperationOutcome" || o.Issue[0].Code != "not-found" {
		t.Errorf("unexpected outcome %+v", o)
	}
	if o.Issue[0].Diagnostics != "Encounter/42 not found" {
		t.Errorf("unexpected diagnostics %q", o.Issue[0].Diagnostics)
	}
	r := Ref("Patient", "p1", "Amina Otieno")
	if r.Reference != "Patient/p1" || r.Type != "Patient" {
		t.Errorf("unexpected reference %+v", r)
	}
	c := Concept("http://loinc.org", "58410-2", "Haemogram")
	if c.Text != "Haemogram" || c.Coding[0].Code != "58410-2" {
		t.Errorf("unexpected concept %+v", c)
	}
}
