package triage

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/frontdesk/internal/platform/apperr"
	"github.com/ehr/frontdesk/internal/platform/auth"
	"github.com/ehr/frontdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleNurse, auth.RoleFrontDesk))
	read.GET("/triage", h.History)
	read.GET("/triage/latest", h.Latest)

	write := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleNurse, auth.RoleFrontDesk))
	write.POST("/triage", h.Record)
}

type recordBody struct {
	PatientID   uuid.UUID  `json:"patient_id"`
	EncounterID *uuid.UUID `json:"encounter_id"`
	Vitals
	Comments   string     `json:"comments"`
	CapturedAt *time.Time `json:"captured_at"`
}

func (h *Handler) Record(c echo.Context) error {
	var body recordBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in := RecordInput{
		PatientID:   body.PatientID,
		EncounterID: body.EncounterID,
		Vitals:      body.Vitals,
		Comments:    body.Comments,
		CapturedAt:  body.CapturedAt,
	}
	if staffID, ok := auth.StaffIDFromContext(c.Request().Context()); ok {
		in.RecordedBy = &staffID
	}
	e, err := h.svc.Record(c.Request().Context(), in)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) Latest(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	e, err := h.svc.Latest(c.Request().Context(), patientID)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.History(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg))
}
