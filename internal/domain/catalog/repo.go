package catalog

import "context"

type Repository interface {
	List(ctx context.Context, f Filter) ([]*Test, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*Test, error)
	// Upsert inserts t or updates the entry with the same name and modality.
	Upsert(ctx context.Context, t *Test) error
}
