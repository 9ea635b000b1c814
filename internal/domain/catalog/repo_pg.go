package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/frontdesk/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const testCols = `id, name, department, modality, parameters, created_at`

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Test, error) {
	query := `SELECT ` + testCols + ` FROM investigation_test WHERE 1=1`
	var args []any
	idx := 1

	if f.Modality != "" {
		query += fmt.Sprintf(` AND modality = $%d`, idx)
		args = append(args, string(f.Modality))
		idx++
	}
	if f.Department != "" {
		query += fmt.Sprintf(` AND department ILIKE $%d`, idx)
		args = append(args, likePattern(f.Department))
		idx++
	}
	if f.Query != "" {
		query += fmt.Sprintf(` AND (name ILIKE $%d OR department ILIKE $%d)`, idx, idx)
		args = append(args, likePattern(f.Query))
	}
	query += ` ORDER BY department, name`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query investigation tests: %w", err)
	}
	return collectTests(rows)
}

func (r *repoPG) GetByIDs(ctx context.Context, ids []int64) ([]*Test, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+testCols+` FROM investigation_test WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query investigation tests: %w", err)
	}
	return collectTests(rows)
}

func (r *repoPG) Upsert(ctx context.Context, t *Test) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO investigation_test (name, department, modality, parameters)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, modality) DO UPDATE
		SET department = EXCLUDED.department, parameters = EXCLUDED.parameters
		RETURNING id, created_at`,
		t.Name, t.Department, string(t.Modality), EncodeParameters(t.Parameters),
	).Scan(&t.ID, &t.CreatedAt)
}

func collectTests(rows pgx.Rows) ([]*Test, error) {
	defer rows.Close()
	var out []*Test
	for rows.Next() {
		var (
			t   Test
			raw []byte
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Department, &t.Modality, &raw, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan investigation test: %w", err)
		}
		t.Parameters, t.Structured = ParseParameters(raw)
		out = append(out, &t)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
