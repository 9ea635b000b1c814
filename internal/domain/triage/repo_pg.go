package triage

import (
	"context"
	"fmt"

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

const entryCols = `id, patient_id, encounter_id, status_category, temperature, heart_rate,
	systolic_bp, diastolic_bp, respiratory_rate, oxygen_saturation,
	weight_kg, height_cm, muac_cm, lmp_date, comments, recorded_by, captured_at`

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO triage_entry (
			patient_id, encounter_id, status_category, temperature, heart_rate,
			systolic_bp, diastolic_bp, respiratory_rate, oxygen_saturation,
			weight_kg, height_cm, muac_cm, lmp_date, comments, recorded_by, captured_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id`,
		e.PatientID, e.EncounterID, e.StatusCategory, e.Temperature, e.HeartRate,
		e.SystolicBP, e.DiastolicBP, e.RespiratoryRate, e.OxygenSaturation,
		e.Weight, e.Height, e.MUAC, e.LMPDate, e.Comments, e.RecordedBy, e.CapturedAt,
	).Scan(&e.ID)
}

func (r *repoPG) Latest(ctx context.Context, patientID uuid.UUID) (*Entry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx, `
		SELECT `+entryCols+` FROM triage_entry
		WHERE patient_id = $1 ORDER BY captured_at DESC, id DESC LIMIT 1`, patientID))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM triage_entry WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count triage entries: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM triage_entry
		WHERE patient_id = $1 ORDER BY captured_at DESC, id DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query triage entries: %w", err)
	}
	entries, err := collectEntries(rows)
	return entries, total, err
}

func (r *repoPG) ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM triage_entry
		WHERE encounter_id = $1 ORDER BY captured_at DESC, id DESC`, encounterID)
	if err != nil {
		return nil, fmt.Errorf("query triage entries: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]*Entry, error) {
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan triage entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.PatientID, &e.EncounterID, &e.StatusCategory, &e.Temperature, &e.HeartRate,
		&e.SystolicBP, &e.DiastolicBP, &e.RespiratoryRate, &e.OxygenSaturation,
		&e.Weight, &e.Height, &e.MUAC, &e.LMPDate, &e.Comments, &e.RecordedBy, &e.CapturedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
