package investigation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/frontdesk/internal/domain/catalog"
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

const requestCols = `id, encounter_id, subject_kind, test_id, test_name, custom_name, parameters,
	department, modality, status, notes, requested_by, requested_at, updated_at`

func (r *repoPG) Create(ctx context.Context, req *Request) error {
	req.ID = uuid.New()

	var (
		testID     *int64
		testName   *string
		customName *string
		params     []byte
	)
	switch s := req.Subject.(type) {
	case CatalogSubject:
		testID, testName = &s.TestID, &s.TestName
		params = catalog.EncodeParameters(s.Parameters)
	case CustomSubject:
		customName = &s.Name
	default:
		return fmt.Errorf("request has no subject")
	}

	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO investigation_request (
			id, encounter_id, subject_kind, test_id, test_name, custom_name, parameters,
			department, modality, status, notes, requested_by, requested_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING updated_at`,
		req.ID, req.EncounterID, string(req.Subject.Kind()), testID, testName, customName, params,
		req.Department, string(req.Modality), string(req.Status), req.Notes, req.RequestedBy, req.RequestedAt,
	).Scan(&req.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM investigation_request WHERE id = $1`, id))
}

func (r *repoPG) ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*Request, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+requestCols+` FROM investigation_request
		WHERE encounter_id = $1 ORDER BY requested_at, id`, encounterID)
	if err != nil {
		return nil, fmt.Errorf("query investigation requests: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan investigation request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE investigation_request SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) CountPending(ctx context.Context, encounterID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM investigation_request
		WHERE encounter_id = $1 AND status <> $2`,
		encounterID, string(StatusResultsPosted)).Scan(&n)
	return n, err
}

func scanRequest(row pgx.Row) (*Request, error) {
	var (
		req        Request
		kind       string
		testID     *int64
		testName   *string
		customName *string
		params     []byte
	)
	err := row.Scan(
		&req.ID, &req.EncounterID, &kind, &testID, &testName, &customName, &params,
		&req.Department, &req.Modality, &req.Status, &req.Notes, &req.RequestedBy, &req.RequestedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	switch SubjectKind(kind) {
	case SubjectCatalog:
		s := CatalogSubject{}
		if testID != nil {
			s.TestID = *testID
		}
		if testName != nil {
			s.TestName = *testName
		}
		s.Parameters, s.Structured = catalog.ParseParameters(params)
		req.Subject = s
	default:
		s := CustomSubject{}
		if customName != nil {
			s.Name = *customName
		}
		req.Subject = s
	}
	return &req, nil
}

// -- Results --

const resultCols = `id, request_id, parameter, value, unit, reference_range, abnormal, notes, entered_by, entered_at`

func (r *repoPG) CreateResults(ctx context.Context, results []*Result) error {
	batch := &pgx.Batch{}
	for _, res := range results {
		res.ID = uuid.New()
		batch.Queue(`
			INSERT INTO investigation_result (`+resultCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			res.ID, res.RequestID, res.Parameter, res.Value, res.Unit, res.ReferenceRange,
			res.Abnormal, res.Notes, res.EnteredBy, res.EnteredAt,
		)
	}
	return r.sendBatch(ctx, batch)
}

func (r *repoPG) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	var br pgx.BatchResults
	if tx := db.TxFromContext(ctx); tx != nil {
		br = tx.SendBatch(ctx, batch)
	} else {
		br = r.pool.SendBatch(ctx, batch)
	}
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}
	return br.Close()
}

func (r *repoPG) ListResults(ctx context.Context, requestIDs []uuid.UUID) ([]*Result, error) {
	if len(requestIDs) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+resultCols+` FROM investigation_result
		WHERE request_id = ANY($1) ORDER BY entered_at, id`, requestIDs)
	if err != nil {
		return nil, fmt.Errorf("query investigation results: %w", err)
	}
	defer rows.Close()

	var out []*Result
	for rows.Next() {
		var res Result
		if err := rows.Scan(
			&res.ID, &res.RequestID, &res.Parameter, &res.Value, &res.Unit, &res.ReferenceRange,
			&res.Abnormal, &res.Notes, &res.EnteredBy, &res.EnteredAt,
		); err != nil {
			return nil, fmt.Errorf("scan investigation result: %w", err)
		}
		out = append(out, &res)
	}
	return out, rows.Err()
}

// -- Status History --

func (r *repoPG) AddStatusChange(ctx context.Context, sc *StatusChange) error {
	sc.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO investigation_status_history (id, request_id, from_status, to_status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sc.ID, sc.RequestID, string(sc.FromStatus), string(sc.ToStatus), sc.ChangedBy, sc.ChangedAt)
	return err
}

func (r *repoPG) GetStatusHistory(ctx context.Context, requestID uuid.UUID) ([]*StatusChange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, request_id, from_status, to_status, changed_by, changed_at
		FROM investigation_status_history WHERE request_id = $1 ORDER BY changed_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StatusChange
	for rows.Next() {
		var sc StatusChange
		if err := rows.Scan(&sc.ID, &sc.RequestID, &sc.FromStatus, &sc.ToStatus, &sc.ChangedBy, &sc.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, &sc)
	}
	return out, rows.Err()
}
