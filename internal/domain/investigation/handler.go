package investigation

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/frontdesk/internal/domain/catalog"
	"github.com/ehr/frontdesk/internal/platform/apperr"
	"github.com/ehr/frontdesk/internal/platform/auth"
	"github.com/ehr/frontdesk/internal/platform/fhir"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleNurse, auth.RoleLab, auth.RoleFrontDesk))
	read.GET("/investigation-requests", h.ListRequests)
	read.GET("/investigation-requests/:id", h.GetRequest)
	read.GET("/investigation-requests/:id/status-history", h.GetStatusHistory)

	order := api.Group("", auth.RequireRole(auth.RoleClinician))
	order.POST("/investigation-requests", h.CreateRequests)

	results := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleLab))
	results.POST("/investigation-requests/:id/results", h.SaveResults)

	status := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleLab, auth.RoleNurse))
	status.PATCH("/investigation-requests/:id/status", h.AdvanceStatus)

	fhirRead := fhirGroup.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleNurse, auth.RoleLab))
	fhirRead.GET("/ServiceRequest", h.SearchServiceRequestsFHIR)
	fhirRead.GET("/ServiceRequest/:id", h.GetServiceRequestFHIR)
}

// -- Request Bodies --

type orderItem struct {
	EncounterID *uuid.UUID       `json:"encounter_id"`
	TestID      *int64           `json:"test_id"`
	CustomName  string           `json:"custom_name"`
	Department  string           `json:"department"`
	Modality    catalog.Modality `json:"modality"`
}

type createRequestsBody struct {
	EncounterID         *uuid.UUID  `json:"encounter_id"`
	Requests            []orderItem `json:"requests"`
	Notes               string      `json:"notes"`
	PendingConfirmation bool        `json:"pending_confirmation"`
}

type saveResultsBody struct {
	Results         []ResultValue `json:"results"`
	AdditionalNotes string        `json:"additional_notes"`
	Status          Status        `json:"status"`
}

type advanceStatusBody struct {
	Status Status `json:"status"`
}

// toOrderInput folds the batch into one OrderInput. All items must target
// the same encounter and at most one may be free text.
func (b *createRequestsBody) toOrderInput(staffID uuid.UUID) (OrderInput, error) {
	in := OrderInput{Notes: b.Notes, PendingConfirmation: b.PendingConfirmation, RequestedBy: staffID}
	if b.EncounterID != nil {
		in.EncounterID = *b.EncounterID
	}
	for i, item := range b.Requests {
		if item.EncounterID != nil {
			if in.EncounterID != uuid.Nil && in.EncounterID != *item.EncounterID {
				return in, apperr.Validation("all requests in a batch must share one encounter")
			}
			in.EncounterID = *item.EncounterID
		}
		switch {
		case item.TestID != nil:
			in.TestIDs = append(in.TestIDs, *item.TestID)
		case item.CustomName != "":
			if in.CustomText != "" {
				return in, apperr.Validation("at most one custom investigation per batch")
			}
			in.CustomText = item.CustomName
			in.CustomDepartment = item.Department
			in.CustomModality = item.Modality
		default:
			return in, apperr.Validation("request %d: test_id or custom_name is required", i)
		}
	}
	return in, nil
}

// -- Handlers --

func (h *Handler) CreateRequests(c echo.Context) error {
	staffID, err := staffID(c)
	if err != nil {
		return err
	}
	var body createRequestsBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in, err := body.toOrderInput(staffID)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	reqs, err := h.svc.RequestInvestigations(c.Request().Context(), in)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"requests": reqs})
}

func (h *Handler) ListRequests(c echo.Context) error {
	encounterID, err := uuid.Parse(c.QueryParam("encounter_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "encounter_id is required")
	}
	reqs, err := h.svc.ListByEncounter(c.Request().Context(), encounterID)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, reqs)
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	req, err := h.svc.GetRequest(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) SaveResults(c echo.Context) error {
	staffID, err := staffID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body saveResultsBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Status != "" && body.Status != StatusResultsPosted {
		return echo.NewHTTPError(http.StatusBadRequest, "saving results sets status results_posted")
	}

	req, results, err := h.svc.SaveResults(c.Request().Context(), ResultInput{
		RequestID: id,
		Values:    body.Results,
		Notes:     body.AdditionalNotes,
		EnteredBy: staffID,
	})
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"request": req, "results": results})
}

func (h *Handler) AdvanceStatus(c echo.Context) error {
	staffID, err := staffID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body advanceStatusBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req, err := h.svc.AdvanceStatus(c.Request().Context(), id, body.Status, staffID)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) GetStatusHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	history, err := h.svc.StatusHistory(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, history)
}

// -- FHIR Endpoints --

func (h *Handler) SearchServiceRequestsFHIR(c echo.Context) error {
	encounterID, err := uuid.Parse(c.QueryParam("encounter"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("encounter search parameter is required"))
	}
	reqs, err := h.svc.ListByEncounter(c.Request().Context(), encounterID)
	if err != nil {
		return c.JSON(apperr.HTTPStatus(err), fhir.ErrorOutcome(apperr.Message(err)))
	}
	resources := make([]fhir.Identified, 0, len(reqs))
	for _, r := range reqs {
		resources = append(resources, r.ToFHIR())
	}
	bundle, err := fhir.NewSearchBundle(resources, "/fhir/ServiceRequest?encounter="+encounterID.String(), h.svc.now())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, bundle)
}

func (h *Handler) GetServiceRequestFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid id"))
	}
	req, err := h.svc.GetRequest(c.Request().Context(), id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("ServiceRequest", id.String()))
		}
		return c.JSON(apperr.HTTPStatus(err), fhir.ErrorOutcome(apperr.Message(err)))
	}
	return c.JSON(http.StatusOK, req.ToFHIR())
}

func staffID(c echo.Context) (uuid.UUID, error) {
	id, ok := auth.StaffIDFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "staff identity required")
	}
	return id, nil
}
