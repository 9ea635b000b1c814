package enrichment

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/frontdesk/internal/domain/encounter"
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
	read := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleNurse, auth.RoleFrontDesk, auth.RoleLab))
	read.GET("/encounters/views", h.ListEncounterViews)
}

func (h *Handler) ListEncounterViews(c echo.Context) error {
	f, err := encounter.FilterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	views, total, err := h.svc.EncounterViews(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg))
}
