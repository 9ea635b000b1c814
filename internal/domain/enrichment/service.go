package enrichment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/frontdesk/internal/domain/encounter"
	"github.com/ehr/frontdesk/internal/domain/identity"
)

type EncounterLister interface {
	List(ctx context.Context, f encounter.Filter, limit, offset int) ([]*encounter.Encounter, int, error)
}

// Directory resolves patients and staff in bulk. identity.Service
// implements it.
type Directory interface {
	PatientsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*identity.Patient, error)
	StaffByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*identity.Staff, error)
}

type Service struct {
	encounters EncounterLister
	dir        Directory
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(encounters EncounterLister, dir Directory, logger zerolog.Logger) *Service {
	return &Service{
		encounters: encounters,
		dir:        dir,
		logger:     logger.With().Str("component", "enrichment").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EncounterViews lists encounters newest first and resolves display names.
// Only the encounter listing can fail; lookup failures are logged and the
// affected rows fall back to placeholders.
func (s *Service) EncounterViews(ctx context.Context, f encounter.Filter, limit, offset int) ([]EncounterView, int, error) {
	encs, total, err := s.encounters.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	patients, staff := s.lookup(ctx, encs)
	return EnrichEncounters(encs, patients, staff, s.now()), total, nil
}

// lookup fetches the patients and providers whose fragments were not joined
// onto the encounter rows. The two loads run concurrently and each failure is
// logged on its own.
func (s *Service) lookup(ctx context.Context, encs []*encounter.Encounter) (map[uuid.UUID]*identity.Patient, map[uuid.UUID]*identity.Staff) {
	var patientIDs, staffIDs []uuid.UUID
	for _, e := range encs {
		if e.Patient == nil || e.Patient.Name == "" {
			patientIDs = append(patientIDs, e.PatientID)
		}
		if e.Provider == nil || e.Provider.Name == "" {
			staffIDs = append(staffIDs, e.ProviderID)
		}
	}

	var (
		patients map[uuid.UUID]*identity.Patient
		staff    map[uuid.UUID]*identity.Staff
		g        errgroup.Group
	)
	if len(patientIDs) > 0 {
		g.Go(func() error {
			m, err := s.dir.PatientsByID(ctx, patientIDs)
			if err != nil {
				s.degraded(err, "patients", len(patientIDs))
				return nil
			}
			patients = m
			return nil
		})
	}
	if len(staffIDs) > 0 {
		g.Go(func() error {
			m, err := s.dir.StaffByID(ctx, staffIDs)
			if err != nil {
				s.degraded(err, "staff", len(staffIDs))
				return nil
			}
			staff = m
			return nil
		})
	}
	_ = g.Wait()
	return patients, staff
}

func (s *Service) degraded(err error, lookup string, ids int) {
	s.logger.Warn().Err(err).Str("lookup", lookup).Int("ids", ids).Msg("enrichment lookup degraded")
}
