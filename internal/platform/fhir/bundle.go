package fhir

import (
	"encoding/json"
	"fmt"
	"time"
)

type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// Identified is implemented by projected resources so bundle entries get a
// fullUrl.
type Identified interface {
	FHIRType() string
	FHIRID() string
}

// NewSearchBundle wraps resources in a searchset Bundle whose total is the
// number of entries.
func NewSearchBundle(resources []Identified, selfURL string, now time.Time) (*Bundle, error) {
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal %s/%s: %w", r.FHIRType(), r.FHIRID(), err)
		}
		entries = append(entries, BundleEntry{
			FullURL:  FormatReference(r.FHIRType(), r.FHIRID()),
			Resource: raw,
			Search:   &BundleSearch{Mode: "match"},
		})
	}

	total := len(entries)
	ts := now.UTC()
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Timestamp:    &ts,
		Link:         []BundleLink{{Relation: "self", URL: selfURL}},
		Entry:        entries,
	}, nil
}

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}
