package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestHandler_GetPatient(t *testing.T) {
	svc, pr, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	p := pr.add(&Patient{FirstName: "Jane", LastName: "Achieng", Active: true})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var got Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || got.ID != p.ID {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_GetPatient_Errors(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	tests := []struct {
		id   string
		code int
	}{
		{"not-a-uuid", http.StatusBadRequest},
		{uuid.New().String(), http.StatusNotFound},
	}
	for _, tt := range tests {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(tt.id)

		err := h.GetPatient(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("expected echo.HTTPError, got %T", err)
		}
		if httpErr.Code != tt.code {
			t.Errorf("id %s: expected %d, got %d", tt.id, tt.code, httpErr.Code)
		}
	}
}

func TestHandler_GetStaff(t *testing.T) {
	svc, _, sr := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	id := uuid.New()
	sr.staff[id] = &Staff{ID: id, FirstName: "Peter", LastName: "Mwangi", Role: "nurse", Active: true}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	if err := h.GetStaff(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
