package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/frontdesk/internal/domain/encounter"
	"github.com/ehr/frontdesk/internal/domain/identity"
	"github.com/ehr/frontdesk/internal/platform/apperr"
)

type mockLister struct {
	encs []*encounter.Encounter
	err  error
}

func (m *mockLister) List(_ context.Context, _ encounter.Filter, _, _ int) ([]*encounter.Encounter, int, error) {
	return m.encs, len(m.encs), m.err
}

type mockDirectory struct {
	mu         sync.Mutex
	patients   map[uuid.UUID]*identity.Patient
	staff      map[uuid.UUID]*identity.Staff
	patientErr error
	staffErr   error
	patientIDs []uuid.UUID
	staffIDs   []uuid.UUID
}

func (m *mockDirectory) PatientsByID(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*identity.Patient, error) {
	m.mu.Lock()
	m.patientIDs = append(m.patientIDs, ids...)
	m.mu.Unlock()
	if m.patientErr != nil {
		return nil, m.patientErr
	}
	return m.patients, nil
}

func (m *mockDirectory) StaffByID(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*identity.Staff, error) {
	m.mu.Lock()
	m.staffIDs = append(m.staffIDs, ids...)
	m.mu.Unlock()
	if m.staffErr != nil {
		return nil, m.staffErr
	}
	return m.staff, nil
}

func newTestService(encs ...*encounter.Encounter) (*Service, *mockLister, *mockDirectory) {
	lister := &mockLister{encs: encs}
	dir := &mockDirectory{
		patients: make(map[uuid.UUID]*identity.Patient),
		staff:    make(map[uuid.UUID]*identity.Staff),
	}
	svc := NewService(lister, dir, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc, lister, dir
}

func TestEncounterViews(t *testing.T) {
	enc := newEncounter()
	svc, _, dir := newTestService(enc)
	dir.patients[enc.PatientID] = &identity.Patient{ID: enc.PatientID, FirstName: "Amina", LastName: "Otieno", BirthDate: date(1990, time.January, 2)}
	dir.staff[enc.ProviderID] = &identity.Staff{ID: enc.ProviderID, FirstName: "Wanjiru", LastName: "Kamau"}

	views, total, err := svc.EncounterViews(context.Background(), encounter.Filter{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || views[0].PatientName != "Amina Otieno" || views[0].ProviderName != "Wanjiru Kamau" {
		t.Errorf("unexpected views %+v", views)
	}
	if views[0].PatientAge == nil || *views[0].PatientAge != 36 {
		t.Errorf("expected age 36, got %v", views[0].PatientAge)
	}
}

func TestEncounterViews_SkipsLookupForJoinedRows(t *testing.T) {
	enc := newEncounter()
	enc.Patient = &encounter.Party{Name: "Amina Otieno"}
	enc.Provider = &encounter.Party{Name: "Dr. Wanjiru Kamau"}
	svc, _, dir := newTestService(enc)

	if _, _, err := svc.EncounterViews(context.Background(), encounter.Filter{}, 20, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dir.patientIDs) != 0 || len(dir.staffIDs) != 0 {
		t.Errorf("expected no lookups, got %d patients %d staff", len(dir.patientIDs), len(dir.staffIDs))
	}
}

func TestEncounterViews_DegradesOnLookupFailure(t *testing.T) {
	enc := newEncounter()
	svc, _, dir := newTestService(enc)
	dir.staff[enc.ProviderID] = &identity.Staff{ID: enc.ProviderID, FirstName: "Wanjiru", LastName: "Kamau"}
	dir.patientErr = errors.New("connection reset")

	views, _, err := svc.EncounterViews(context.Background(), encounter.Filter{}, 20, 0)
	if err != nil {
		t.Fatalf("lookup failure should not fail the view: %v", err)
	}
	if views[0].PatientName != PatientPlaceholder(enc.PatientID) {
		t.Errorf("expected placeholder, got %q", views[0].PatientName)
	}
	if views[0].ProviderName != "Wanjiru Kamau" {
		t.Errorf("staff lookup should still apply, got %q", views[0].ProviderName)
	}
}

func TestEncounterViews_LogsEveryLookupFailure(t *testing.T) {
	enc := newEncounter()
	svc, _, dir := newTestService(enc)
	dir.patientErr = errors.New("patient directory timeout")
	dir.staffErr = errors.New("staff directory timeout")

	var buf bytes.Buffer
	svc.logger = zerolog.New(zerolog.SyncWriter(&buf))

	views, _, err := svc.EncounterViews(context.Background(), encounter.Filter{}, 20, 0)
	if err != nil {
		t.Fatalf("lookup failures should not fail the view: %v", err)
	}
	if views[0].PatientName != PatientPlaceholder(enc.PatientID) {
		t.Errorf("expected patient placeholder, got %q", views[0].PatientName)
	}

	out := buf.String()
	if n := strings.Count(out, "enrichment lookup degraded"); n != 2 {
		t.Fatalf("expected one warning per failed lookup, got %d: %s", n, out)
	}
	for _, want := range []string{"patient directory timeout", "staff directory timeout", `"lookup":"patients"`, `"lookup":"staff"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output", want)
		}
	}
}

func TestEncounterViews_ListFailure(t *testing.T) {
	svc, lister, _ := newTestService()
	lister.err = apperr.Persistence(errors.New("connection reset"), "failed to list encounters")

	if _, _, err := svc.EncounterViews(context.Background(), encounter.Filter{}, 20, 0); !errors.Is(err, apperr.ErrPersistence) {
		t.Errorf("expected persistence error, got %v", err)
	}
}

func TestHandler_ListEncounterViews(t *testing.T) {
	enc := newEncounter()
	svc, _, _ := newTestService(enc)
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/encounters/views?patient_id="+enc.PatientID.String(), nil)
	rec := httptest.NewRecorder()
	if err := h.ListEncounterViews(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var page struct {
		Data  []map[string]any `json:"data"`
		Total int              `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || page.Data[0]["patient_name"] != PatientPlaceholder(enc.PatientID) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if _, ok := page.Data[0]["patient_age"]; !ok {
		t.Errorf("patient_age should be present as null")
	}

	req = httptest.NewRequest(http.MethodGet, "/encounters/views?patient_id=bad", nil)
	if httpErr, ok := h.ListEncounterViews(e.NewContext(req, httptest.NewRecorder())).(*echo.HTTPError); !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad patient_id")
	}
}
