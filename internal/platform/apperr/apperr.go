// Package apperr carries the workflow error taxonomy across layers so that
// handlers can map service failures to HTTP responses without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Kind int

const (
	KindInternal Kind = iota
	// KindValidation: malformed input or nothing to act on.
	KindValidation
	// KindState: operation not allowed in the entity's current state.
	KindState
	// KindPersistence: the backing store rejected or failed a write. Retryable.
	KindPersistence
	// KindConsent: a consent-gated action lacks OTP verification.
	KindConsent
	KindNotFound
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindPersistence:
		return "persistence"
	case KindConsent:
		return "consent"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
	// RetryAfter is set on KindRateLimited errors.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrState)
// style sentinels work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind-only sentinels for errors.Is.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrState       = &Error{Kind: KindState}
	ErrPersistence = &Error{Kind: KindPersistence}
	ErrConsent     = &Error{Kind: KindConsent}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrRateLimited = &Error{Kind: KindRateLimited}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func State(format string, args ...any) error {
	return &Error{Kind: KindState, Msg: fmt.Sprintf(format, args...)}
}

func Persistence(err error, msg string) error {
	return &Error{Kind: KindPersistence, Msg: msg, Err: err}
}

func Consent(msg string) error {
	return &Error{Kind: KindConsent, Msg: msg}
}

func NotFound(what string, id any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %v not found", what, id)}
}

func RateLimited(msg string, retryAfter time.Duration) error {
	return &Error{Kind: KindRateLimited, Msg: msg, RetryAfter: retryAfter}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// RetryAfter returns the retry hint of a rate-limited error, or zero.
func RetryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindState:
		return http.StatusConflict
	case KindPersistence:
		return http.StatusServiceUnavailable
	case KindConsent:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Message is the client-facing text for err. Internal errors are not leaked.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		if e.Kind == KindPersistence {
			return e.Msg
		}
		return e.Error()
	}
	return "internal server error"
}
