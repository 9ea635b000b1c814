package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/frontdesk/internal/platform/apperr"
	"github.com/ehr/frontdesk/internal/platform/db"
)

type Service struct {
	patients PatientRepository
	staff    StaffRepository
}

func NewService(patients PatientRepository, staff StaffRepository) *Service {
	return &Service{patients: patients, staff: staff}
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("patient", id)
		}
		return nil, apperr.Persistence(err, "load patient")
	}
	return p, nil
}

func (s *Service) GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	st, err := s.staff.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("staff", id)
		}
		return nil, apperr.Persistence(err, "load staff")
	}
	return st, nil
}

// PatientsByID loads the given patients keyed by id. Unknown ids are absent
// from the map.
func (s *Service) PatientsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Patient, error) {
	list, err := s.patients.GetByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	out := make(map[uuid.UUID]*Patient, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func (s *Service) StaffByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Staff, error) {
	list, err := s.staff.GetByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	out := make(map[uuid.UUID]*Staff, len(list))
	for _, st := range list {
		out[st.ID] = st
	}
	return out, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
