package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/frontdesk/internal/platform/apperr"
	"github.com/ehr/frontdesk/internal/platform/db"
)

type Service struct {
	repo   Repository
	tx     db.Transactor
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, logger: logger.With().Str("component", "catalog").Logger()}
}

// ListTests returns the catalog entries matching f. No match is an empty
// slice.
func (s *Service) ListTests(ctx context.Context, f Filter) ([]*Test, error) {
	if f.Modality != "" && !f.Modality.Valid() {
		return nil, apperr.Validation("invalid modality: %s", f.Modality)
	}
	f.Department = strings.TrimSpace(f.Department)
	f.Query = strings.TrimSpace(f.Query)

	tests, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, apperr.Persistence(err, "list investigation tests")
	}
	if tests == nil {
		tests = []*Test{}
	}
	return tests, nil
}

// GetTests loads catalog entries keyed by id. Unknown ids are absent.
func (s *Service) GetTests(ctx context.Context, ids []int64) (map[int64]*Test, error) {
	tests, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load investigation tests: %w", err)
	}
	out := make(map[int64]*Test, len(tests))
	for _, t := range tests {
		out[t.ID] = t
	}
	return out, nil
}

func (s *Service) GetTest(ctx context.Context, id int64) (*Test, error) {
	tests, err := s.GetTests(ctx, []int64{id})
	if err != nil {
		return nil, apperr.Persistence(err, "load investigation test")
	}
	t, ok := tests[id]
	if !ok {
		return nil, apperr.NotFound("investigation test", id)
	}
	return t, nil
}

// ImportEntry is one element of a catalog import file.
type ImportEntry struct {
	Name       string      `json:"name"`
	Department string      `json:"department"`
	Modality   Modality    `json:"modality"`
	Parameters []Parameter `json:"parameters"`
}

// Import loads a JSON array of ImportEntry and upserts every entry in one
// transaction. It returns the number of entries written.
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	var entries []ImportEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return 0, apperr.Validation("decode catalog: %v", err)
	}
	if len(entries) == 0 {
		return 0, apperr.Validation("catalog file has no entries")
	}

	tests := make([]*Test, 0, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return 0, apperr.Validation("entry %d: name is required", i)
		}
		if !e.Modality.Valid() {
			return 0, apperr.Validation("entry %d (%s): invalid modality %q", i, name, e.Modality)
		}
		params, structured := ParseParameters(EncodeParameters(e.Parameters))
		tests = append(tests, &Test{
			Name:       name,
			Department: strings.TrimSpace(e.Department),
			Modality:   e.Modality,
			Parameters: params,
			Structured: structured,
		})
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, t := range tests {
			if err := s.repo.Upsert(ctx, t); err != nil {
				return fmt.Errorf("upsert %s: %w", t.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperr.Persistence(err, "import investigation catalog")
	}
	s.logger.Info().Int("count", len(tests)).Msg("investigation catalog imported")
	return len(tests), nil
}
