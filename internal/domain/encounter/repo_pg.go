package encounter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
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

const encCols = `e.id, e.encounter_number, e.encounter_type, e.priority, e.insurance_category,
	e.patient_id, e.provider_id, e.notes, e.status, e.closed_at, e.next_appointment_at,
	e.created_at, e.updated_at,
	NULLIF(concat_ws(' ', p.first_name, p.middle_name, p.last_name), ''), p.birth_date,
	NULLIF(concat_ws(' ', s.title, s.first_name, s.last_name), '')`

const encFrom = `FROM encounter e
	LEFT JOIN patient p ON p.id = e.patient_id
	LEFT JOIN staff s ON s.id = e.provider_id`

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	enc.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO encounter (
			id, encounter_number, encounter_type, priority, insurance_category,
			patient_id, provider_id, notes, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
		RETURNING created_at, updated_at`,
		enc.ID, enc.Number, enc.Type, enc.Priority, enc.InsuranceCategory,
		enc.PatientID, enc.ProviderID, enc.Notes, enc.Status, enc.CreatedAt,
	).Scan(&enc.CreatedAt, &enc.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return scanEnc(r.conn(ctx).QueryRow(ctx, `SELECT `+encCols+` `+encFrom+` WHERE e.id = $1`, id))
}

func (r *repoPG) Latest(ctx context.Context, patientID uuid.UUID) (*Encounter, error) {
	return scanEnc(r.conn(ctx).QueryRow(ctx, `
		SELECT `+encCols+` `+encFrom+`
		WHERE e.patient_id = $1
		ORDER BY e.created_at DESC, e.encounter_number DESC LIMIT 1`, patientID))
}

func (r *repoPG) Close(ctx context.Context, id uuid.UUID, notes *string, closedAt time.Time, nextAppointmentAt *time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE encounter SET
			status = 'closed',
			notes = COALESCE($2, notes),
			closed_at = $3,
			next_appointment_at = $4,
			updated_at = NOW()
		WHERE id = $1 AND status = 'open'`,
		id, notes, closedAt, nextAppointmentAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Encounter, int, error) {
	var where []string
	var args []interface{}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where = append(where, fmt.Sprintf("e.patient_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("e.status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM encounter e`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s %s%s
		ORDER BY e.created_at DESC, e.encounter_number DESC
		LIMIT $%d OFFSET $%d`, encCols, encFrom, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var encs []*Encounter
	for rows.Next() {
		e, err := scanEnc(rows)
		if err != nil {
			return nil, 0, err
		}
		encs = append(encs, e)
	}
	return encs, total, rows.Err()
}

func scanEnc(row pgx.Row) (*Encounter, error) {
	var (
		e            Encounter
		patientName  *string
		birthDate    *time.Time
		providerName *string
	)
	err := row.Scan(
		&e.ID, &e.Number, &e.Type, &e.Priority, &e.InsuranceCategory,
		&e.PatientID, &e.ProviderID, &e.Notes, &e.Status, &e.ClosedAt, &e.NextAppointmentAt,
		&e.CreatedAt, &e.UpdatedAt,
		&patientName, &birthDate, &providerName,
	)
	if err != nil {
		return nil, err
	}
	if patientName != nil {
		e.Patient = &Party{Name: *patientName, BirthDate: birthDate}
	}
	if providerName != nil {
		e.Provider = &Party{Name: *providerName}
	}
	return &e, nil
}
