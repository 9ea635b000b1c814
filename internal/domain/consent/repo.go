package consent

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	ListTypes(ctx context.Context) ([]*Type, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error)
	Upsert(ctx context.Context, r *Record) error
	AddAudit(ctx context.Context, a *AuditEntry) error
}
