package consent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
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

func (r *repoPG) ListTypes(ctx context.Context) ([]*Type, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name, description, mandatory, otp_required FROM consent_type ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query consent types: %w", err)
	}
	defer rows.Close()

	var out []*Type
	for rows.Next() {
		var t Type
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Mandatory, &t.OTPRequired); err != nil {
			return nil, fmt.Errorf("scan consent type: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT patient_id, consent_type_id, granted, otp_verified, bypassed, recorded_by, updated_at
		FROM patient_consent WHERE patient_id = $1 ORDER BY consent_type_id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query patient consents: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.PatientID, &rec.ConsentTypeID, &rec.Granted, &rec.OTPVerified,
			&rec.Bypassed, &rec.RecordedBy, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan patient consent: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *repoPG) Upsert(ctx context.Context, rec *Record) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_consent (patient_id, consent_type_id, granted, otp_verified, bypassed, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (patient_id, consent_type_id) DO UPDATE
		SET granted = EXCLUDED.granted, otp_verified = EXCLUDED.otp_verified,
			bypassed = EXCLUDED.bypassed, recorded_by = EXCLUDED.recorded_by, updated_at = NOW()
		RETURNING updated_at`,
		rec.PatientID, rec.ConsentTypeID, rec.Granted, rec.OTPVerified, rec.Bypassed, rec.RecordedBy,
	).Scan(&rec.UpdatedAt)
}

func (r *repoPG) AddAudit(ctx context.Context, a *AuditEntry) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consent_audit (patient_id, actor_id, granted_type_ids, otp_verified, bypassed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		a.PatientID, a.ActorID, a.GrantedTypeIDs, a.OTPVerified, a.Bypassed,
	).Scan(&a.ID, &a.CreatedAt)
}
