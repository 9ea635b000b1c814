package identity

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetByIDs returns the patients found; missing ids are silently absent.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Patient, error)
}

type StaffRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Staff, error)
}
