package apperr

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

// ToHTTPError renders err for an echo handler. Consent failures carry
// otp_required so the client can start the OTP flow; rate-limited errors
// carry retry_after_seconds.
func ToHTTPError(err error) *echo.HTTPError {
	status := HTTPStatus(err)
	body := map[string]any{"message": Message(err)}
	switch KindOf(err) {
	case KindConsent:
		body["otp_required"] = true
	case KindRateLimited:
		body["retry_after_seconds"] = RetryAfterSeconds(err)
	case KindPersistence:
		body["retryable"] = true
	}
	return echo.NewHTTPError(status, body)
}

// RetryAfterSeconds rounds the retry hint up to whole seconds.
func RetryAfterSeconds(err error) int {
	return int(math.Ceil(RetryAfter(err).Seconds()))
}

// SetRetryAfter writes the Retry-After header for rate-limited errors.
func SetRetryAfter(c echo.Context, err error) {
	if KindOf(err) == KindRateLimited {
		c.Response().Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(err)))
	}
}
