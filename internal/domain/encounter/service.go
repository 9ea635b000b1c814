package encounter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/ehr/frontdesk/internal/platform/apperr"
	"github.com/ehr/frontdesk/internal/platform/db"
)

// PendingCounter counts an encounter's investigation requests that have
// not reached results_posted.
type PendingCounter interface {
	CountPending(ctx context.Context, encounterID uuid.UUID) (int, error)
}

// numberAttempts bounds retries when a generated number collides.
const numberAttempts = 3

type Service struct {
	repo    Repository
	pending PendingCounter
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, pending PendingCounter, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		pending: pending,
		logger:  logger.With().Str("component", "encounter").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Open(ctx context.Context, in OpenInput) (*Encounter, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	if in.ProviderID == uuid.Nil {
		return nil, apperr.Validation("provider_id is required")
	}
	enc := &Encounter{
		Type:       strings.TrimSpace(in.Type),
		Priority:   strings.TrimSpace(in.Priority),
		PatientID:  in.PatientID,
		ProviderID: in.ProviderID,
		Status:     StatusOpen,
	}
	if enc.Type == "" {
		enc.Type = DefaultType
	}
	if enc.Priority == "" {
		enc.Priority = DefaultPriority
	}
	if v := strings.TrimSpace(in.InsuranceCategory); v != "" {
		enc.InsuranceCategory = &v
	}
	if v := strings.TrimSpace(in.Notes); v != "" {
		enc.Notes = &v
	}

	for attempt := 1; ; attempt++ {
		enc.CreatedAt = s.now()
		number, err := NewNumber(enc.CreatedAt)
		if err != nil {
			return nil, err
		}
		enc.Number = number
		err = s.repo.Create(ctx, enc)
		if err == nil {
			break
		}
		switch {
		case db.IsForeignKeyViolation(err):
			return nil, apperr.Validation("unknown patient %s", in.PatientID)
		case db.IsUniqueViolation(err) && attempt < numberAttempts:
			s.logger.Debug().Str("encounter_number", number).Msg("encounter number collision, retrying")
			continue
		}
		return nil, apperr.Persistence(err, "failed to open encounter")
	}

	s.logger.Info().
		Str("encounter_id", enc.ID.String()).
		Str("encounter_number", enc.Number).
		Str("patient_id", enc.PatientID.String()).
		Msg("encounter opened")
	return enc, nil
}

// ResumeOrCreate returns the patient's most recently created encounter,
// whatever its status, opening a new one only when the patient has none.
// Concurrent calls for the same patient are not coordinated and may both
// create.
func (s *Service) ResumeOrCreate(ctx context.Context, in OpenInput) (*Encounter, bool, error) {
	if in.PatientID == uuid.Nil {
		return nil, false, apperr.Validation("patient_id is required")
	}
	enc, err := s.repo.Latest(ctx, in.PatientID)
	if err == nil {
		return enc, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, apperr.Persistence(err, "failed to load encounters")
	}
	enc, err = s.Open(ctx, in)
	if err != nil {
		return nil, false, err
	}
	return enc, true, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("encounter", id)
		}
		return nil, apperr.Persistence(err, "failed to load encounter")
	}
	return enc, nil
}

// Close requires an open encounter. Outstanding investigation requests do
// not block closing; their count is reported instead.
func (s *Service) Close(ctx context.Context, id uuid.UUID, in CloseInput) (*CloseResult, error) {
	enc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !enc.IsOpen() {
		return nil, apperr.State("encounter %s is already closed", enc.Number)
	}

	closedAt := s.now()
	if in.ClosedAt != nil && !in.ClosedAt.IsZero() {
		closedAt = in.ClosedAt.UTC()
	}
	if closedAt.Before(enc.CreatedAt) {
		return nil, apperr.Validation("closed_at precedes the encounter start")
	}
	var next *time.Time
	if in.NextAppointmentAt != nil && !in.NextAppointmentAt.IsZero() {
		t := in.NextAppointmentAt.UTC()
		if t.Before(closedAt) {
			return nil, apperr.Validation("next_appointment_at must be after closed_at")
		}
		next = &t
	}
	notes := in.Notes
	if notes != nil {
		if v := strings.TrimSpace(*notes); v != "" {
			notes = &v
		} else {
			notes = nil
		}
	}

	ok, err := s.repo.Close(ctx, id, notes, closedAt, next)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to close encounter")
	}
	if !ok {
		return nil, apperr.State("encounter %s is already closed", enc.Number)
	}

	enc.Status = StatusClosed
	enc.ClosedAt = &closedAt
	enc.NextAppointmentAt = next
	if notes != nil {
		enc.Notes = notes
	}
	enc.UpdatedAt = s.now()

	res := &CloseResult{Encounter: enc}
	if s.pending != nil {
		n, err := s.pending.CountPending(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("encounter_id", id.String()).Msg("pending investigation count unavailable")
		} else {
			res.PendingInvestigations = n
		}
	}
	s.logger.Info().
		Str("encounter_id", id.String()).
		Int("pending_investigations", res.PendingInvestigations).
		Msg("encounter closed")
	return res, nil
}

// List returns encounters newest first.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Encounter, int, error) {
	if f.Status != "" && f.Status != StatusOpen && f.Status != StatusClosed {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	encs, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Persistence(err, "failed to list encounters")
	}
	if encs == nil {
		encs = []*Encounter{}
	}
	return encs, total, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	return s.List(ctx, Filter{PatientID: &patientID}, limit, offset)
}
