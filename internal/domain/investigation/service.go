package investigation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/frontdesk/internal/domain/catalog"
	"github.com/ehr/frontdesk/internal/platform/apperr"
	"github.com/ehr/frontdesk/internal/platform/db"
)

// CatalogReader is the slice of the catalog the request engine needs.
type CatalogReader interface {
	GetTests(ctx context.Context, ids []int64) (map[int64]*catalog.Test, error)
}

type Service struct {
	repo     Repository
	catalog  CatalogReader
	registry *Registry
	tx       db.Transactor
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, cat CatalogReader, registry *Registry, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		catalog:  cat,
		registry: registry,
		tx:       tx,
		logger:   logger.With().Str("component", "investigation").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// -- Ordering --

// RequestInvestigations creates one request per selected catalog test plus
// one free-text request when CustomText is non-blank. A request the store
// fails to accept is returned provisional under a temporary id; it becomes
// durable on its first result save.
func (s *Service) RequestInvestigations(ctx context.Context, in OrderInput) ([]*Request, error) {
	if in.EncounterID == uuid.Nil {
		return nil, apperr.Validation("encounter_id is required")
	}
	testIDs := dedupeIDs(in.TestIDs)
	custom := strings.TrimSpace(in.CustomText)
	if len(testIDs) == 0 && custom == "" {
		return nil, apperr.Validation("no investigations selected")
	}

	var tests map[int64]*catalog.Test
	if len(testIDs) > 0 {
		var err error
		tests, err = s.catalog.GetTests(ctx, testIDs)
		if err != nil {
			return nil, apperr.Persistence(err, "investigation catalog unavailable")
		}
		for _, id := range testIDs {
			if _, ok := tests[id]; !ok {
				return nil, apperr.Validation("unknown investigation test: %d", id)
			}
		}
	}

	customModality := in.CustomModality
	if custom != "" {
		if customModality == "" {
			customModality = catalog.ModalityLaboratory
		}
		if !customModality.Valid() {
			return nil, apperr.Validation("invalid modality: %s", customModality)
		}
	}

	status := StatusNotCollected
	if in.PendingConfirmation {
		status = StatusRequested
	}
	var notes *string
	if n := strings.TrimSpace(in.Notes); n != "" {
		notes = &n
	}
	now := s.now()

	pending := make([]*Request, 0, len(testIDs)+1)
	for _, id := range testIDs {
		t := tests[id]
		pending = append(pending, &Request{
			EncounterID: in.EncounterID,
			Subject: CatalogSubject{
				TestID:     t.ID,
				TestName:   t.Name,
				Parameters: t.Parameters,
				Structured: t.Structured,
			},
			Department:  t.Department,
			Modality:    t.Modality,
			Status:      status,
			Notes:       notes,
			RequestedBy: in.RequestedBy,
			RequestedAt: now,
		})
	}
	if custom != "" {
		pending = append(pending, &Request{
			EncounterID: in.EncounterID,
			Subject:     CustomSubject{Name: custom},
			Department:  strings.TrimSpace(in.CustomDepartment),
			Modality:    customModality,
			Status:      status,
			Notes:       notes,
			RequestedBy: in.RequestedBy,
			RequestedAt: now,
		})
	}

	for _, req := range pending {
		err := s.repo.Create(ctx, req)
		if err == nil {
			continue
		}
		if db.IsForeignKeyViolation(err) {
			return nil, apperr.Validation("encounter %s not found", in.EncounterID)
		}
		req.ID = uuid.New()
		req.UpdatedAt = now
		s.registry.Hold(req)
		s.logger.Warn().Err(err).
			Str("encounter_id", in.EncounterID.String()).
			Str("request_id", req.ID.String()).
			Str("investigation", req.Name()).
			Msg("investigation request held provisionally")
	}
	return pending, nil
}

// -- Results --

// SaveResults records the entered values against a request and posts it.
//
// Rows are built and validated before anything is written, so a blank
// submission changes nothing. A provisional request is then made durable and
// its temporary id reconciled; that swap is kept even if the result write
// that follows fails. The whole call is serialized per request id.
func (s *Service) SaveResults(ctx context.Context, in ResultInput) (*Request, []*Result, error) {
	unlock := s.registry.Lock(in.RequestID)
	defer unlock()

	id, held, provisional := s.registry.Resolve(in.RequestID)
	var req *Request
	if provisional {
		cp := *held
		req = &cp
	} else {
		var err error
		if req, err = s.load(ctx, id); err != nil {
			return nil, nil, err
		}
	}

	now := s.now()
	results := buildResults(req, in.Values, in.Notes, in.EnteredBy, now)
	if len(results) == 0 {
		return nil, nil, apperr.Validation("no results to save")
	}
	if err := ValidateTransition(req.Status, StatusResultsPosted); err != nil {
		return nil, nil, err
	}

	if provisional {
		tempID := req.ID
		req.Provisional = false
		if err := s.repo.Create(ctx, req); err != nil {
			return nil, nil, apperr.Persistence(err, "investigation request could not be saved, retry")
		}
		s.registry.Reconcile(tempID, req.ID)
		s.logger.Info().
			Str("encounter_id", req.EncounterID.String()).
			Str("temporary_id", tempID.String()).
			Str("request_id", req.ID.String()).
			Msg("provisional investigation request reconciled")
	}
	for _, r := range results {
		r.RequestID = req.ID
	}

	from := req.Status
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateResults(ctx, results); err != nil {
			return err
		}
		if from == StatusResultsPosted {
			return nil
		}
		if err := s.repo.UpdateStatus(ctx, req.ID, StatusResultsPosted); err != nil {
			return err
		}
		return s.repo.AddStatusChange(ctx, &StatusChange{
			RequestID:  req.ID,
			FromStatus: from,
			ToStatus:   StatusResultsPosted,
			ChangedBy:  in.EnteredBy,
			ChangedAt:  now,
		})
	})
	if err != nil {
		return nil, nil, apperr.Persistence(err, "investigation results could not be saved, retry")
	}

	req.Status = StatusResultsPosted
	req.UpdatedAt = now
	s.logger.Info().
		Str("encounter_id", req.EncounterID.String()).
		Str("request_id", req.ID.String()).
		Int("rows", len(results)).
		Msg("investigation results posted")
	return req, results, nil
}

// buildResults turns entered values into result rows. Catalog requests get
// one row per schema parameter with a non-blank value; custom requests and
// catalog requests without a usable schema get at most one free-text row.
func buildResults(req *Request, values []ResultValue, notes string, enteredBy uuid.UUID, now time.Time) []*Result {
	var notesPtr *string
	if n := strings.TrimSpace(notes); n != "" {
		notesPtr = &n
	}
	row := func(param, value, unit, rng string, abnormal *bool) *Result {
		if abnormal == nil {
			abnormal = EvaluateRange(value, rng)
		}
		return &Result{
			RequestID:      req.ID,
			Parameter:      param,
			Value:          value,
			Unit:           unit,
			ReferenceRange: rng,
			Abnormal:       abnormal,
			Notes:          notesPtr,
			EnteredBy:      enteredBy,
			EnteredAt:      now,
		}
	}

	switch sub := req.Subject.(type) {
	case CatalogSubject:
		if !sub.Structured || len(sub.Parameters) == 0 {
			if v, ok := freeTextValue(values, sub.TestName); ok {
				return []*Result{row(sub.TestName, v.Value, "", "", v.Abnormal)}
			}
			return nil
		}
		entered := indexValues(values)
		var out []*Result
		for _, p := range sub.Parameters {
			v, ok := entered[strings.ToLower(p.Parameter)]
			if !ok {
				continue
			}
			out = append(out, row(p.Parameter, v.Value, p.Unit, p.Range, v.Abnormal))
		}
		return out
	case CustomSubject:
		if v, ok := freeTextValue(values, sub.Name); ok {
			return []*Result{row(sub.Name, v.Value, "", "", v.Abnormal)}
		}
	}
	return nil
}

// indexValues keys the non-blank values by lower-cased parameter name, with
// values trimmed.
func indexValues(values []ResultValue) map[string]ResultValue {
	out := make(map[string]ResultValue, len(values))
	for _, v := range values {
		v.Value = strings.TrimSpace(v.Value)
		if v.Value == "" {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(v.Parameter))] = v
	}
	return out
}

// freeTextValue prefers the value keyed to name and otherwise takes the
// first non-blank one.
func freeTextValue(values []ResultValue, name string) (ResultValue, bool) {
	entered := indexValues(values)
	if v, ok := entered[strings.ToLower(strings.TrimSpace(name))]; ok {
		return v, true
	}
	for _, v := range values {
		if v.Value = strings.TrimSpace(v.Value); v.Value != "" {
			return v, true
		}
	}
	return ResultValue{}, false
}

// -- Status --

// AdvanceStatus moves a request forward short of results_posted, which is
// reached only by saving results.
func (s *Service) AdvanceStatus(ctx context.Context, requestID uuid.UUID, to Status, changedBy uuid.UUID) (*Request, error) {
	if !to.Valid() {
		return nil, apperr.Validation("invalid status: %s", to)
	}
	if to == StatusResultsPosted {
		return nil, apperr.Validation("results_posted is set by saving results")
	}

	unlock := s.registry.Lock(requestID)
	defer unlock()

	id, held, provisional := s.registry.Resolve(requestID)
	if provisional {
		if err := ValidateTransition(held.Status, to); err != nil {
			return nil, err
		}
		s.registry.SetStatus(id, to)
		_, held, _ = s.registry.Resolve(id)
		cp := *held
		return &cp, nil
	}

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(req.Status, to); err != nil {
		return nil, err
	}
	now := s.now()
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, req.ID, to); err != nil {
			return err
		}
		return s.repo.AddStatusChange(ctx, &StatusChange{
			RequestID:  req.ID,
			FromStatus: req.Status,
			ToStatus:   to,
			ChangedBy:  changedBy,
			ChangedAt:  now,
		})
	})
	if err != nil {
		return nil, apperr.Persistence(err, "status could not be saved, retry")
	}
	req.Status = to
	req.UpdatedAt = now
	return req, nil
}

func (s *Service) StatusHistory(ctx context.Context, requestID uuid.UUID) ([]*StatusChange, error) {
	id, _, provisional := s.registry.Resolve(requestID)
	if provisional {
		return []*StatusChange{}, nil
	}
	history, err := s.repo.GetStatusHistory(ctx, id)
	if err != nil {
		return nil, apperr.Persistence(err, "load status history")
	}
	if history == nil {
		history = []*StatusChange{}
	}
	return history, nil
}

// -- Reads --

// GetRequest resolves temporary ids and embeds the request's results.
func (s *Service) GetRequest(ctx context.Context, requestID uuid.UUID) (*Request, error) {
	id, held, provisional := s.registry.Resolve(requestID)
	if provisional {
		cp := *held
		return &cp, nil
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachResults(ctx, []*Request{req}); err != nil {
		return nil, err
	}
	return req, nil
}

// ListByEncounter returns durable and provisional requests of an encounter
// with their results embedded, oldest first.
func (s *Service) ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*Request, error) {
	reqs, err := s.repo.ListByEncounter(ctx, encounterID)
	if err != nil {
		return nil, apperr.Persistence(err, "list investigation requests")
	}
	if err := s.attachResults(ctx, reqs); err != nil {
		return nil, err
	}
	out := append(reqs, s.registry.ListHeld(encounterID)...)
	if out == nil {
		out = []*Request{}
	}
	return out, nil
}

// CountPending counts the encounter's requests short of results_posted,
// provisional ones included.
func (s *Service) CountPending(ctx context.Context, encounterID uuid.UUID) (int, error) {
	n, err := s.repo.CountPending(ctx, encounterID)
	if err != nil {
		return 0, err
	}
	return n + len(s.registry.ListHeld(encounterID)), nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("investigation request", id)
		}
		return nil, apperr.Persistence(err, "load investigation request")
	}
	return req, nil
}

func (s *Service) attachResults(ctx context.Context, reqs []*Request) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(reqs))
	byID := make(map[uuid.UUID]*Request, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
		byID[r.ID] = r
	}
	results, err := s.repo.ListResults(ctx, ids)
	if err != nil {
		return apperr.Persistence(err, "load investigation results")
	}
	for _, res := range results {
		if r, ok := byID[res.RequestID]; ok {
			r.Results = append(r.Results, res)
		}
	}
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
