package encounter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, enc *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	// Latest returns the patient's most recently created encounter, open or
	// closed, or pgx.ErrNoRows.
	Latest(ctx context.Context, patientID uuid.UUID) (*Encounter, error)
	// Close moves an open encounter to closed. It reports false when the
	// row was not open.
	Close(ctx context.Context, id uuid.UUID, notes *string, closedAt time.Time, nextAppointmentAt *time.Time) (bool, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Encounter, int, error)
}
