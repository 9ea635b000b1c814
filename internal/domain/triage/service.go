package triage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/frontdesk/internal/platform/apperr"
	"github.com/ehr/frontdesk/internal/platform/db"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "triage").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordInput is a triage capture. Only PatientID is required.
type RecordInput struct {
	PatientID   uuid.UUID
	EncounterID *uuid.UUID
	Vitals      Vitals
	Comments    string
	RecordedBy  *uuid.UUID
	CapturedAt  *time.Time
}

func (s *Service) Record(ctx context.Context, in RecordInput) (*Entry, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	e := &Entry{
		PatientID:   in.PatientID,
		EncounterID: in.EncounterID,
		Vitals:      in.Vitals,
		RecordedBy:  in.RecordedBy,
		CapturedAt:  s.now(),
	}
	if in.EncounterID != nil && *in.EncounterID == uuid.Nil {
		e.EncounterID = nil
	}
	if in.CapturedAt != nil && !in.CapturedAt.IsZero() {
		e.CapturedAt = in.CapturedAt.UTC()
	}
	if c := strings.TrimSpace(in.Comments); c != "" {
		e.Comments = &c
	}
	if err := s.repo.Create(ctx, e); err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, apperr.Validation("unknown patient or encounter")
		}
		return nil, apperr.Persistence(err, "triage could not be saved, retry")
	}
	s.logger.Info().
		Str("patient_id", e.PatientID.String()).
		Int64("triage_id", e.ID).
		Msg("triage recorded")
	return withDerived(e), nil
}

// Latest returns the patient's most recent entry, or nil when there is none.
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID) (*Entry, error) {
	e, err := s.repo.Latest(ctx, patientID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, apperr.Persistence(err, "load latest triage")
	}
	return withDerived(e), nil
}

// History lists the patient's entries newest first.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	entries, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Persistence(err, "load triage history")
	}
	for _, e := range entries {
		withDerived(e)
	}
	return entries, total, nil
}

func (s *Service) ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*Entry, error) {
	entries, err := s.repo.ListByEncounter(ctx, encounterID)
	if err != nil {
		return nil, apperr.Persistence(err, "load encounter triage")
	}
	for _, e := range entries {
		withDerived(e)
	}
	return entries, nil
}

func withDerived(e *Entry) *Entry {
	e.BMI = ComputeBMI(e.Weight, e.Height)
	return e
}
