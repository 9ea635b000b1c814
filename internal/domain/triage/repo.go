package triage

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	// Latest returns pgx.ErrNoRows when the patient has no entries.
	Latest(ctx context.Context, patientID uuid.UUID) (*Entry, error)
	// ListByPatient orders by captured_at then id, newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error)
	ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*Entry, error)
}
