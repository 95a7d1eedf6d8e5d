// Package model defines the types shared by every layer of the security
// pipeline: denials, problem responses, principals and security events.
//
// # Denials
//
// A Denial is the one way a pipeline step terminates a request early. Its
// DenialKind is a closed set, and each kind maps to exactly one status code:
//
//	DenialValidation             400
//	DenialAuthenticationMissing  401
//	DenialAuthorization          403
//	DenialCSRF                   403
//	DenialRateLimited            429
//	DenialInternal               500
//
// Denials are built with Deny and recovered from wrapped errors with AsDenial:
//
//	return model.Deny(model.DenialCSRF, "token mismatch")
//
//	if d, ok := model.AsDenial(err); ok {
//	    status := d.Kind.Status()
//	}
//
// Reason and the wrapped error stay internal. The caller only ever sees the
// generic message of the kind.
//
// # Error Types
//
// RFC 9457 Problem Details responses are defined in errors.go:
//
//	type ProblemDetails struct {
//	    Type     string       `json:"type"`
//	    Title    string       `json:"title"`
//	    Status   int          `json:"status"`
//	    Detail   string       `json:"detail,omitempty"`
//	    Instance string       `json:"instance,omitempty"`
//	    Errors   []FieldError `json:"errors,omitempty"`
//	    // Extension fields
//	    Code       ErrorCode `json:"code,omitempty"`
//	    RetryAfter *int      `json:"retryAfter,omitempty"`
//	}
//
// # Security Events
//
// SecurityEvent is the write-only record of a denial or violation.
// EventCategoryFor maps a DenialKind to the category it is recorded under.
package model
