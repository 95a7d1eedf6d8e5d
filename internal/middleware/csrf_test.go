package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/bastion/internal/model"
	"github.com/forgo/bastion/internal/security"
)

func TestCSRF(t *testing.T) {
	t.Parallel()
	guard := security.NewCSRFGuard(security.CSRFConfig{})
	token, err := guard.GenerateToken()
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		header string
		cookie string
		status int
	}{
		{"safe method without token", http.MethodGet, "", "", http.StatusOK},
		{"matching pair", http.MethodPost, token, token, http.StatusOK},
		{"missing header", http.MethodPost, "", token, http.StatusForbidden},
		{"mismatch", http.MethodDelete, token, token + "0", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			events := &eventCapture{}

			r := httptest.NewRequest(tt.method, "/v1/echo", nil)
			if tt.header != "" {
				r.Header.Set(security.DefaultHeaderName, tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: security.DefaultCookieName, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()
			CSRF(guard, events)(okHandler(nil)).ServeHTTP(rr, r)

			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusForbidden {
				p := decodeProblem(t, rr)
				assert.Equal(t, model.ErrCodeCSRFMismatch, p.Code)
				assert.Equal(t, model.MsgRequestDenied, p.Detail)
				assert.Equal(t, []model.EventCategory{model.EventCSRFViolation}, events.categories())
			} else {
				assert.Empty(t, events.all())
			}
		})
	}
}
