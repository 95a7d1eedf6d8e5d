package model

import "time"

// EventCategory classifies a security event
type EventCategory string

const (
	EventSuspiciousActivity    EventCategory = "SUSPICIOUS_ACTIVITY"
	EventRateLimitExceeded     EventCategory = "RATE_LIMIT_EXCEEDED"
	EventCSRFViolation         EventCategory = "CSRF_VIOLATION"
	EventAuthenticationFailure EventCategory = "AUTHENTICATION_FAILURE"
	EventAuthorizationDenied   EventCategory = "AUTHORIZATION_DENIED"
	EventValidationFailure     EventCategory = "VALIDATION_FAILURE"
	EventInternalError         EventCategory = "INTERNAL_ERROR"
)

// EventCategoryFor returns the event category a denial is recorded under.
func EventCategoryFor(kind DenialKind) EventCategory {
	switch kind {
	case DenialValidation:
		return EventValidationFailure
	case DenialAuthenticationMissing:
		return EventAuthenticationFailure
	case DenialAuthorization:
		return EventAuthorizationDenied
	case DenialCSRF:
		return EventCSRFViolation
	case DenialRateLimited:
		return EventRateLimitExceeded
	default:
		return EventInternalError
	}
}

// SecurityEvent is a write-only record of a denial or violation.
type SecurityEvent struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Category  EventCategory `json:"category"`
	IP        string        `json:"ip"`
	UserAgent string        `json:"user_agent"`
	URL       string        `json:"url"`
	Method    string        `json:"method"`
	RequestID string        `json:"request_id,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	Detail    string        `json:"detail"`
}
