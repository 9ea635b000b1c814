package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("no results to save"), http.StatusBadRequest},
		{State("encounter %s is already closed", "E1"), http.StatusConflict},
		{Persistence(errors.New("conn refused"), "save results"), http.StatusServiceUnavailable},
		{Consent("otp verification required"), http.StatusForbidden},
		{NotFound("encounter", 7), http.StatusNotFound},
		{RateLimited("otp resend cooldown active", time.Minute), http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("close encounter: %w", State("closed")), http.StatusConflict},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestIsSentinels(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Validation("bad"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrState)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestPersistenceUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence(cause, "persist investigation request")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "persist investigation request: connection reset", err.Error())
	assert.Equal(t, "persist investigation request", Message(err))
}

func TestRetryAfterAndMessage(t *testing.T) {
	err := RateLimited("otp resend cooldown active", 42*time.Second)
	assert.Equal(t, 42*time.Second, RetryAfter(err))
	assert.Equal(t, time.Duration(0), RetryAfter(errors.New("x")))
	assert.Equal(t, "internal server error", Message(errors.New("pq: secret detail")))
	assert.Equal(t, "encounter 7 not found", Message(NotFound("encounter", 7)))
}

func TestToHTTPError(t *testing.T) {
	he := ToHTTPError(Consent("otp verification required"))
	assert.Equal(t, http.StatusForbidden, he.Code)
	body := he.Message.(map[string]any)
	assert.Equal(t, true, body["otp_required"])

	he = ToHTTPError(RateLimited("resend blocked", 1500*time.Millisecond))
	assert.Equal(t, http.StatusTooManyRequests, he.Code)
	assert.Equal(t, 2, he.Message.(map[string]any)["retry_after_seconds"])

	he = ToHTTPError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, he.Code)
	assert.Equal(t, "internal server error", he.Message.(map[string]any)["message"])
}
