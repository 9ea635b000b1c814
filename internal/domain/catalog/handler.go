package catalog

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/frontdesk/internal/platform/apperr"
	"github.com/ehr/frontdesk/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleNurse, auth.RoleLab, auth.RoleFrontDesk))
	read.GET("/investigation-tests", h.ListTests)
	read.GET("/investigation-tests/:id", h.GetTest)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/investigation-tests/import", h.Import)
}

func (h *Handler) ListTests(c echo.Context) error {
	tests, err := h.svc.ListTests(c.Request().Context(), Filter{
		Modality:   Modality(c.QueryParam("modality")),
		Department: c.QueryParam("department"),
		Query:      c.QueryParam("q"),
	})
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, tests)
}

func (h *Handler) GetTest(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTest(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Import(c echo.Context) error {
	n, err := h.svc.Import(c.Request().Context(), c.Request().Body)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"imported": n})
}
