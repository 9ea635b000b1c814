package catalog

import (
	"encoding/json"
	"strings"
	"time"
)

type Modality string

const (
	ModalityLaboratory Modality = "laboratory"
	ModalityImaging    Modality = "imaging"
)

func (m Modality) Valid() bool {
	return m == ModalityLaboratory || m == ModalityImaging
}

// Parameter is one entry of a test's result schema.
type Parameter struct {
	Parameter string `json:"parameter"`
	Unit      string `json:"unit"`
	Range     string `json:"range"`
}

// Test maps to the investigation_test table.
type Test struct {
	ID         int64       `db:"id" json:"id"`
	Name       string      `db:"name" json:"name"`
	Department string      `db:"department" json:"department"`
	Modality   Modality    `db:"modality" json:"modality"`
	Parameters []Parameter `db:"-" json:"parameters"`
	// Structured is false when the stored schema could not be parsed. Results
	// for such a test are captured as a single free-text value.
	Structured bool      `db:"-" json:"structured"`
	CreatedAt  time.Time `db:"created_at" json:"-"`
}

// Filter narrows ListTests. Matching is case-insensitive substring.
type Filter struct {
	Modality   Modality
	Department string
	Query      string
}

// ParseParameters decodes a stored schema. Entries without a parameter name
// are dropped; an empty or unreadable schema reports ok=false.
func ParseParameters(raw []byte) (params []Parameter, ok bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var decoded []Parameter
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}
	for _, p := range decoded {
		p.Parameter = strings.TrimSpace(p.Parameter)
		if p.Parameter == "" {
			continue
		}
		params = append(params, p)
	}
	return params, len(params) > 0
}

// EncodeParameters is the inverse of ParseParameters.
func EncodeParameters(params []Parameter) []byte {
	if params == nil {
		params = []Parameter{}
	}
	b, _ := json.Marshal(params)
	return b
}

// Matches applies f in memory the same way the SQL repository does.
func (f Filter) Matches(t *Test) bool {
	if f.Modality != "" && t.Modality != f.Modality {
		return false
	}
	if f.Department != "" && !containsFold(t.Department, f.Department) {
		return false
	}
	if f.Query != "" && !containsFold(t.Name, f.Query) && !containsFold(t.Department, f.Query) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
