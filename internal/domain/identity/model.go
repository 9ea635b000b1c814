package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. Records are never hard-deleted; Active
// carries the soft lifecycle.
type Patient struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	FirstName  string     `db:"first_name" json:"first_name"`
	MiddleName *string    `db:"middle_name" json:"middle_name,omitempty"`
	LastName   string     `db:"last_name" json:"last_name"`
	Gender     *string    `db:"gender" json:"gender,omitempty"`
	BirthDate  *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Phone      *string    `db:"phone" json:"phone,omitempty"`
	Email      *string    `db:"email" json:"email,omitempty"`
	Address    *string    `db:"address" json:"address,omitempty"`
	Active     bool       `db:"active" json:"active"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) DisplayName() string {
	parts := []string{p.FirstName}
	if p.MiddleName != nil && *p.MiddleName != "" {
		parts = append(parts, *p.MiddleName)
	}
	parts = append(parts, p.LastName)
	return joinNonEmpty(parts)
}

// Staff maps to the staff table. Staff CRUD lives elsewhere; this service
// only reads it.
type Staff struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Title     *string   `db:"title" json:"title,omitempty"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Role      string    `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
}

func (s *Staff) DisplayName() string {
	parts := []string{}
	if s.Title != nil {
		parts = append(parts, *s.Title)
	}
	parts = append(parts, s.FirstName, s.LastName)
	return joinNonEmpty(parts)
}

func joinNonEmpty(parts []string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
