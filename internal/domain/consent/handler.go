package consent

import (
	"net/http"

	"github.com/google/uuid"
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
	staff := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleNurse, auth.RoleFrontDesk))
	staff.GET("/consent-types", h.ListTypes)
	staff.GET("/patients/:id/consents", h.GetConsents)
	staff.POST("/patients/:id/consents", h.SaveConsents)
	staff.POST("/patients/:id/send-consent-otp", h.SendOTP)
	staff.POST("/patients/:id/verify-consent-otp", h.VerifyOTP)
}

// bypassRoles may save OTP-required grants without verification.
var bypassRoles = []string{auth.RoleClinician}

type saveConsentsBody struct {
	Grants      map[int64]bool `json:"grants"`
	OTPVerified bool           `json:"otp_verified"`
	AllowBypass bool           `json:"allow_bypass"`
}

type sendOTPBody struct {
	Phone string `json:"phone"`
}

type verifyOTPBody struct {
	Code string `json:"code"`
}

func (h *Handler) ListTypes(c echo.Context) error {
	types, err := h.svc.ListTypes(c.Request().Context())
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, types)
}

func (h *Handler) GetConsents(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	state, err := h.svc.GetConsents(c.Request().Context(), patientID)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (h *Handler) SaveConsents(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var body saveConsentsBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	if body.AllowBypass && !auth.HasAnyRole(auth.RolesFromContext(ctx), bypassRoles...) {
		return echo.NewHTTPError(http.StatusForbidden, "consent bypass not permitted for this role")
	}

	in := SaveInput{
		PatientID:   patientID,
		Grants:      body.Grants,
		OTPVerified: body.OTPVerified,
		AllowBypass: body.AllowBypass,
	}
	if staffID, ok := auth.StaffIDFromContext(ctx); ok {
		in.ActorID = &staffID
	}
	records, err := h.svc.SaveConsents(ctx, in)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"records": records})
}

func (h *Handler) SendOTP(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var body sendOTPBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	challenge, err := h.svc.RequestOTP(c.Request().Context(), patientID, body.Phone)
	if err != nil {
		apperr.SetRetryAfter(c, err)
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, challenge)
}

func (h *Handler) VerifyOTP(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var body verifyOTPBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ok, err := h.svc.VerifyOTP(c.Request().Context(), patientID, body.Code)
	if err != nil {
		apperr.SetRetryAfter(c, err)
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"verified": ok})
}
