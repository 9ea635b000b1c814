package investigation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create assigns the durable id and inserts r.
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*Request, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	// CountPending counts requests of the encounter short of results_posted.
	CountPending(ctx context.Context, encounterID uuid.UUID) (int, error)

	CreateResults(ctx context.Context, results []*Result) error
	ListResults(ctx context.Context, requestIDs []uuid.UUID) ([]*Result, error)

	AddStatusChange(ctx context.Context, sc *StatusChange) error
	GetStatusHistory(ctx context.Context, requestID uuid.UUID) ([]*StatusChange, error)
}
