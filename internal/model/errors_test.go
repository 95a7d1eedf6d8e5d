package model

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ============================================================================
// Error() Interface Tests
// ============================================================================

func TestProblemDetails_Error_ReturnsFormattedMessage(t *testing.T) {
	t.Parallel()

	pd := &ProblemDetails{
		Status: http.StatusForbidden,
		Title:  "Forbidden",
		Detail: "Request denied",
	}

	errMsg := pd.Error()

	if !strings.Contains(errMsg, "403") {
		t.Errorf("error message should contain status code, got: %s", errMsg)
	}
	if !strings.Contains(errMsg, "Forbidden") {
		t.Errorf("error message should contain title, got: %s", errMsg)
	}
	if !strings.Contains(errMsg, "Request denied") {
		t.Errorf("error message should contain detail, got: %s", errMsg)
	}
}

// ============================================================================
// WriteJSON Tests
// ============================================================================

func TestProblemDetails_WriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	t.Parallel()

	pd := NewForbiddenError(MsgRequestDenied)
	rr := httptest.NewRecorder()

	pd.WriteJSON(rr)

	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected Content-Type 'application/problem+json', got %q", ct)
	}
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
}

func TestProblemDetails_WriteJSON_EncodesBody(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	NewRateLimitError(42).WriteJSON(rr)

	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}

	if body["status"] != float64(http.StatusTooManyRequests) {
		t.Errorf("expected status 429 in body, got %v", body["status"])
	}
	if body["retryAfter"] != float64(42) {
		t.Errorf("expected retryAfter 42, got %v", body["retryAfter"])
	}
	if body["detail"] != MsgTooManyRequests {
		t.Errorf("expected generic detail, got %v", body["detail"])
	}
	if body["code"] != float64(ErrCodeRateLimited) {
		t.Errorf("expected code %d, got %v", ErrCodeRateLimited, body["code"])
	}
}

func TestProblemDetails_WriteJSON_OmitsRetryAfterWhenUnset(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	NewBadRequestError(MsgRequestDenied).WriteJSON(rr)

	if strings.Contains(rr.Body.String(), "retryAfter") {
		t.Errorf("retryAfter should be omitted, got %s", rr.Body.String())
	}
}

// ============================================================================
// Constructor Tests
// ============================================================================

func TestConstructors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pd     *ProblemDetails
		status int
		code   ErrorCode
		suffix string
	}{
		{"unauthorized", NewUnauthorizedError(MsgUnauthorized), 401, ErrCodeUnauthorized, "unauthorized"},
		{"forbidden", NewForbiddenError(MsgRequestDenied), 403, ErrCodeForbidden, "forbidden"},
		{"csrf", NewCSRFError(), 403, ErrCodeCSRFMismatch, "forbidden"},
		{"validation", NewValidationError(nil), 400, ErrCodeValidation, "validation"},
		{"bad request", NewBadRequestError(MsgRequestDenied), 400, ErrCodeInvalidInput, "bad-request"},
		{"internal", NewInternalError(""), 500, ErrCodeInternal, "internal"},
		{"rate limited", NewRateLimitError(1), 429, ErrCodeRateLimited, "rate-limited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.pd.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.pd.Status)
			}
			if tt.pd.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, tt.pd.Code)
			}
			if tt.pd.Type != errorTypeBase+tt.suffix {
				t.Errorf("expected type %q, got %q", errorTypeBase+tt.suffix, tt.pd.Type)
			}
		})
	}
}

func TestNewCSRFError_IsGeneric(t *testing.T) {
	t.Parallel()

	csrf := NewCSRFError()
	forbidden := NewForbiddenError(MsgRequestDenied)

	if csrf.Detail != forbidden.Detail || csrf.Title != forbidden.Title {
		t.Errorf("csrf denial should look like any other 403, got %+v", csrf)
	}
}

func TestNewInternalError_DefaultDetail(t *testing.T) {
	t.Parallel()

	if pd := NewInternalError(""); pd.Detail != MsgInternal {
		t.Errorf("expected default detail %q, got %q", MsgInternal, pd.Detail)
	}
}

func TestNewValidationError_Detail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		errors []FieldError
		want   string
	}{
		{"no errors", nil, "One or more fields failed validation"},
		{"single", []FieldError{{Field: "message", Message: "is required"}}, "message: is required"},
		{"multiple", []FieldError{
			{Field: "message", Message: "is required"},
			{Field: "lang", Message: "must be 2 characters"},
		}, "message: is required (and 1 more errors)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pd := NewValidationError(tt.errors)
			if pd.Detail != tt.want {
				t.Errorf("expected detail %q, got %q", tt.want, pd.Detail)
			}
			if len(pd.Errors) != len(tt.errors) {
				t.Errorf("expected %d field errors, got %d", len(tt.errors), len(pd.Errors))
			}
		})
	}
}
