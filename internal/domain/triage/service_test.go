package triage

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/ehr/frontdesk/internal/platform/apperr"
)

// -- Mock Repository --

type mockRepo struct {
	entries []*Entry
	nextID  int64
	err     error
}

func (m *mockRepo) Create(_ context.Context, e *Entry) error {
	if m.err != nil {
		return m.err
	}
	m.nextID++
	e.ID = m.nextID
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockRepo) sorted(match func(*Entry) bool) []*Entry {
	var out []*Entry
	for _, e := range m.entries {
		if match(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Newer(out[j]) })
	return out
}

func (m *mockRepo) Latest(_ context.Context, patientID uuid.UUID) (*Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	list := m.sorted(func(e *Entry) bool { return e.PatientID == patientID })
	if len(list) == 0 {
		return nil, pgx.ErrNoRows
	}
	return list[0], nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	list := m.sorted(func(e *Entry) bool { return e.PatientID == patientID })
	total := len(list)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return list[offset:end], total, nil
}

func (m *mockRepo) ListByEncounter(_ context.Context, encounterID uuid.UUID) ([]*Entry, error) {
	return m.sorted(func(e *Entry) bool { return e.EncounterID != nil && *e.EncounterID == encounterID }), nil
}

func newTestService() (*Service, *mockRepo) {
	repo := &mockRepo{}
	return NewService(repo, zerolog.Nop()), repo
}

func ptr[T any](v T) *T { return &v }

var testPatient = uuid.MustParse("2b7e9a1c-4f0d-4e7b-9b3a-8c1d2e3f4a5b")

// -- Tests --

func TestRecord_OnlyPatientRequired(t *testing.T) {
	svc, repo := newTestService()

	e, err := svc.Record(context.Background(), RecordInput{PatientID: testPatient})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if e.ID == 0 || e.CapturedAt.IsZero() || e.EncounterID != nil {
		t.Errorf("unexpected entry %+v", e)
	}
	if len(repo.entries) != 1 {
		t.Errorf("expected 1 stored entry")
	}

	if _, err := svc.Record(context.Background(), RecordInput{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRecord_StoresValuesAsGiven(t *testing.T) {
	svc, _ := newTestService()
	enc := uuid.New()

	e, err := svc.Record(context.Background(), RecordInput{
		PatientID:   testPatient,
		EncounterID: &enc,
		Vitals: Vitals{
			Temperature: ptr(45.0),
			HeartRate:   ptr(300),
			Weight:      ptr(70.0),
			Height:      ptr(175.0),
		},
		Comments: "  anxious  ",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if *e.Temperature != 45.0 || *e.HeartRate != 300 {
		t.Errorf("values should be stored without plausibility checks")
	}
	if e.Comments == nil || *e.Comments != "anxious" {
		t.Errorf("unexpected comments %v", e.Comments)
	}
	if e.BMI == nil || *e.BMI != 22.9 {
		t.Errorf("expected BMI 22.9, got %v", e.BMI)
	}
}

func TestRecord_StoreFailure(t *testing.T) {
	svc, repo := newTestService()
	repo.err = errors.New("connection refused")
	if _, err := svc.Record(context.Background(), RecordInput{PatientID: testPatient}); !errors.Is(err, apperr.ErrPersistence) {
		t.Errorf("expected persistence error, got %v", err)
	}
}

func TestLatest_GreatestCapturedAtTiesByID(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	later := base.Add(time.Hour)

	for _, at := range []time.Time{base, later, later, base.Add(-time.Hour)} {
		at := at
		if _, err := svc.Record(ctx, RecordInput{PatientID: testPatient, CapturedAt: &at}); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := svc.Latest(ctx, testPatient)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !latest.CapturedAt.Equal(later) || latest.ID != 3 {
		t.Errorf("expected entry 3 at %s, got %d at %s", later, latest.ID, latest.CapturedAt)
	}
}

func TestLatest_NoneIsNil(t *testing.T) {
	svc, _ := newTestService()
	e, err := svc.Latest(context.Background(), testPatient)
	if err != nil || e != nil {
		t.Errorf("expected nil, nil; got %v, %v", e, err)
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		if _, err := svc.Record(ctx, RecordInput{PatientID: testPatient, CapturedAt: &at}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Record(ctx, RecordInput{PatientID: uuid.New()}); err != nil {
		t.Fatal(err)
	}

	entries, total, err := svc.History(ctx, testPatient, 10, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if total != 3 || len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d/%d", len(entries), total)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CapturedAt.After(entries[i-1].CapturedAt) {
			t.Errorf("history not ordered newest first")
		}
	}
}

func TestComputeBMI(t *testing.T) {
	tests := []struct {
		weight, height *float64
		want           *float64
	}{
		{ptr(70.0), ptr(175.0), ptr(22.9)},
		{ptr(3.2), ptr(50.0), ptr(12.8)},
		{nil, ptr(175.0), nil},
		{ptr(70.0), nil, nil},
		{ptr(70.0), ptr(0.0), nil},
	}
	for _, tt := range tests {
		got := ComputeBMI(tt.weight, tt.height)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("ComputeBMI(%v, %v) = %v, want %v", tt.weight, tt.height, got, tt.want)
		}
	}
}
