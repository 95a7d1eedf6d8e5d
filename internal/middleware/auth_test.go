package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/bastion/internal/model"
	"github.com/forgo/bastion/pkg/jwt"
)

func newTokenService(t *testing.T) *jwt.Service {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwt.NewTestService(key, "bastion-test", time.Hour)
}

// ============================================================================
// BearerAuthenticator Tests
// ============================================================================

func TestBearerAuthenticator(t *testing.T) {
	t.Parallel()
	tokens := newTokenService(t)
	a := NewBearerAuthenticator(tokens)

	token, err := tokens.Sign(jwt.Claims{UserID: "user-1", Email: "u@example.com", Role: "admin"})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	p, err := a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "u@example.com", p.Email)
	assert.Equal(t, "admin", p.Role)
}

func TestBearerAuthenticator_Failures(t *testing.T) {
	t.Parallel()
	a := NewBearerAuthenticator(newTokenService(t))

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"missing", "", ErrNoCredentials},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ErrMalformedAuthValue},
		{"no token", "Bearer", ErrMalformedAuthValue},
		{"garbage token", "Bearer not.a.jwt", jwt.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			_, err := a.Authenticate(r)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// ============================================================================
// Authenticate / RequireRole Tests
// ============================================================================

func TestAuthenticate_Missing(t *testing.T) {
	t.Parallel()
	events := &eventCapture{}
	called := false

	h := Authenticate(stubAuth{principal: &model.Principal{UserID: "u"}}, events)(okHandler(&called))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
	assert.Equal(t, model.MsgUnauthorized, decodeProblem(t, rr).Detail)
	assert.Equal(t, []model.EventCategory{model.EventAuthenticationFailure}, events.categories())
}

func TestAuthenticate_SetsPrincipal(t *testing.T) {
	t.Parallel()

	var got *model.Principal
	h := Authenticate(stubAuth{principal: &model.Principal{UserID: "u-9", Role: "user"}}, &eventCapture{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = GetPrincipal(r.Context())
		}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer x")
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.NotNil(t, got)
	assert.Equal(t, "u-9", got.UserID)
}

func TestOptionalAuthenticate(t *testing.T) {
	t.Parallel()
	a := stubAuth{principal: &model.Principal{UserID: "u-2"}}

	var ids []string
	h := OptionalAuthenticate(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, GetUserID(r.Context()))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer x")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, []string{"", "u-2"}, ids)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		principal *model.Principal
		status    int
	}{
		{"no principal", nil, http.StatusUnauthorized},
		{"wrong role", &model.Principal{UserID: "u", Role: "user"}, http.StatusForbidden},
		{"exact role", &model.Principal{UserID: "u", Role: "moderator"}, http.StatusOK},
		{"admin holds all", &model.Principal{UserID: "u", Role: "admin"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := RequireRole("moderator", &eventCapture{})(okHandler(nil))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.principal != nil {
				r = r.WithContext(WithPrincipal(r.Context(), tt.principal))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, r)

			assert.Equal(t, tt.status, rr.Code)
		})
	}
}
