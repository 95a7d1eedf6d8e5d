package model

import (
	"errors"
	"net/http"
)

// DenialKind is the closed set of reasons the pipeline terminates a request early.
type DenialKind int

const (
	DenialInternal DenialKind = iota
	DenialValidation
	DenialAuthenticationMissing
	DenialAuthorization
	DenialCSRF
	DenialRateLimited
)

func (k DenialKind) String() string {
	switch k {
	case DenialValidation:
		return "validation_denial"
	case DenialAuthenticationMissing:
		return "authentication_missing"
	case DenialAuthorization:
		return "authorization_denied"
	case DenialCSRF:
		return "csrf_mismatch"
	case DenialRateLimited:
		return "rate_limit_exceeded"
	default:
		return "internal_fault"
	}
}

// Status returns the HTTP status code for the kind.
func (k DenialKind) Status() int {
	switch k {
	case DenialValidation:
		return http.StatusBadRequest
	case DenialAuthenticationMissing:
		return http.StatusUnauthorized
	case DenialAuthorization, DenialCSRF:
		return http.StatusForbidden
	case DenialRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Denial is a terminal rejection. Reason is internal detail and is never sent
// to the caller.
type Denial struct {
	Kind       DenialKind
	Reason     string
	RetryAfter int
	Fields     []FieldError
	Err        error

	// Category overrides the event category derived from Kind.
	Category EventCategory
}

func (d *Denial) Error() string {
	msg := d.Kind.String()
	if d.Reason != "" {
		msg += ": " + d.Reason
	}
	if d.Err != nil {
		msg += ": " + d.Err.Error()
	}
	return msg
}

func (d *Denial) Unwrap() error {
	return d.Err
}

// EventCategory returns the category the denial is recorded under.
func (d *Denial) EventCategory() EventCategory {
	if d.Category != "" {
		return d.Category
	}
	return EventCategoryFor(d.Kind)
}

// Problem maps the denial onto its user-visible problem document.
func (d *Denial) Problem() *ProblemDetails {
	switch d.Kind {
	case DenialValidation:
		if len(d.Fields) > 0 {
			return NewValidationError(d.Fields)
		}
		return NewBadRequestError(MsgRequestDenied)
	case DenialAuthenticationMissing:
		return NewUnauthorizedError(MsgUnauthorized)
	case DenialAuthorization:
		return NewForbiddenError(MsgRequestDenied)
	case DenialCSRF:
		return NewCSRFError()
	case DenialRateLimited:
		retryAfter := d.RetryAfter
		if retryAfter < 1 {
			retryAfter = 1
		}
		return NewRateLimitError(retryAfter)
	default:
		return NewInternalError("")
	}
}

// Deny builds a denial of the given kind.
func Deny(kind DenialKind, reason string) *Denial {
	return &Denial{Kind: kind, Reason: reason}
}

// AsDenial reports whether err carries a Denial, and returns it.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
