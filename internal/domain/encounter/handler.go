package encounter

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/frontdesk/internal/platform/apperr"
	"github.com/ehr/frontdesk/internal/platform/auth"
	"github.com/ehr/frontdesk/internal/platform/fhir"
	"github.com/ehr/frontdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleNurse, auth.RoleFrontDesk, auth.RoleLab))
	read.GET("/encounters", h.ListEncounters)
	read.GET("/encounters/:id", h.GetEncounter)

	write := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleNurse, auth.RoleFrontDesk))
	write.POST("/encounters", h.OpenEncounter)
	write.POST("/encounters/resume", h.ResumeEncounter)

	closer := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleFrontDesk))
	closer.PATCH("/encounters/:id", h.CloseEncounter)

	fhirRead := fhirGroup.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleNurse))
	fhirRead.GET("/Encounter", h.SearchEncountersFHIR)
	fhirRead.GET("/Encounter/:id", h.GetEncounterFHIR)
}

// openInput binds an OpenInput. A missing provider defaults to the caller.
func openInput(c echo.Context) (OpenInput, error) {
	var in OpenInput
	if err := c.Bind(&in); err != nil {
		return in, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.ProviderID == uuid.Nil {
		if id, ok := auth.StaffIDFromContext(c.Request().Context()); ok {
			in.ProviderID = id
		}
	}
	return in, nil
}

func (h *Handler) OpenEncounter(c echo.Context) error {
	in, err := openInput(c)
	if err != nil {
		return err
	}
	enc, err := h.svc.Open(c.Request().Context(), in)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusCreated, enc)
}

func (h *Handler) ResumeEncounter(c echo.Context) error {
	in, err := openInput(c)
	if err != nil {
		return err
	}
	enc, created, err := h.svc.ResumeOrCreate(c.Request().Context(), in)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, map[string]any{"encounter": enc, "created": created})
}

func (h *Handler) GetEncounter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	enc, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, enc)
}

func (h *Handler) ListEncounters(c echo.Context) error {
	f, err := FilterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	encs, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(encs, total, pg))
}

func (h *Handler) CloseEncounter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in CloseInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.Close(c.Request().Context(), id, in)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// FilterFromQuery reads patient_id and status list filters.
func FilterFromQuery(c echo.Context) (Filter, error) {
	var f Filter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	f.Status = Status(c.QueryParam("status"))
	return f, nil
}

// -- FHIR Endpoints --

func (h *Handler) SearchEncountersFHIR(c echo.Context) error {
	var f Filter
	self := "/fhir/Encounter"
	if v := c.QueryParam("patient"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid patient search parameter"))
		}
		f.PatientID = &id
		self += "?patient=" + id.String()
	}
	pg := pagination.FromContext(c)
	encs, _, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return c.JSON(apperr.HTTPStatus(err), fhir.ErrorOutcome(apperr.Message(err)))
	}
	resources := make([]fhir.Identified, 0, len(encs))
	for _, e := range encs {
		resources = append(resources, e.ToFHIR())
	}
	bundle, err := fhir.NewSearchBundle(resources, self, h.svc.now())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, bundle)
}

func (h *Handler) GetEncounterFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid id"))
	}
	enc, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Encounter", id.String()))
		}
		return c.JSON(apperr.HTTPStatus(err), fhir.ErrorOutcome(apperr.Message(err)))
	}
	return c.JSON(http.StatusOK, enc.ToFHIR())
}
