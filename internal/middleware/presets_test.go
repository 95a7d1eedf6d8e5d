package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/bastion/internal/model"
	"github.com/forgo/bastion/internal/ratelimit"
	"github.com/forgo/bastion/internal/security"
)

type presetFixture struct {
	presets *Presets
	guard   *security.CSRFGuard
	events  *eventCapture
}

func newPresetFixture(t *testing.T, overrides ...ratelimit.Policy) presetFixture {
	t.Helper()

	l := newTestLimiter(t)
	for _, p := range overrides {
		l.MustRegister(p)
	}
	registerDefaultPolicies(t, l)

	f := presetFixture{
		guard:  security.NewCSRFGuard(security.CSRFConfig{}),
		events: &eventCapture{},
	}
	f.presets = NewPresets(PresetDeps{
		Detector: security.NewDetector(),
		Limiter:  l,
		CSRF:     f.guard,
		Headers:  security.NewHeaderWriter(security.HeaderConfig{}),
		Auth: roleAuth{
			"Bearer user":  {UserID: "u-user", Role: "user"},
			"Bearer admin": {UserID: "u-admin", Role: "admin"},
		},
		Events: f.events,
	})
	return f
}

// roleAuth maps Authorization header values to principals.
type roleAuth map[string]*model.Principal

func (a roleAuth) Authenticate(r *http.Request) (*model.Principal, error) {
	if p, ok := a[r.Header.Get("Authorization")]; ok {
		return p, nil
	}
	return nil, errNoToken
}

// csrfPair issues a token the way the token endpoint does and returns the
// header value and cookie a browser would send back.
func (f presetFixture) csrfPair(t *testing.T) (string, *http.Cookie) {
	t.Helper()
	token, err := f.guard.GenerateToken()
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	f.guard.AttachToken(rr, token)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	return token, cookies[0]
}

func postJSON(path, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func assertHardened(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
}

// ============================================================================
// Shape Tests
// ============================================================================

func TestPresets_StepOrder(t *testing.T) {
	t.Parallel()
	p := newPresetFixture(t).presets

	assert.Equal(t, []string{
		StepHeaders, StepContainment, StepPatterns, StepNormalize, StepRateLimit, StepAuthenticate, StepCSRF,
	}, p.StandardAPI().Names())
	assert.Equal(t, []string{
		StepHeaders, StepContainment, StepPatterns, StepNormalize, StepRateLimit,
	}, p.AuthEndpoint().Names())
	assert.Equal(t, []string{
		StepHeaders, StepContainment, StepPatterns, StepNormalize, StepAuthenticate, StepRequireRole, StepRateLimit, StepCSRF,
	}, p.AdminOnly().Names())
	assert.Equal(t, []string{
		StepHeaders, StepContainment, StepPatterns, StepRateLimit, StepAuthenticate,
	}, p.Public().Names())
}

// ============================================================================
// StandardAPI Tests
// ============================================================================

func TestStandardAPI_InjectionRejectedBeforeHandler(t *testing.T) {
	t.Parallel()
	f := newPresetFixture(t)
	called := false

	rr := httptest.NewRecorder()
	f.presets.StandardAPI().Then(okHandler(&called)).ServeHTTP(rr,
		postJSON("/v1/echo", `{"message":"'; DROP TABLE users; --"}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, called)
	assertHardened(t, rr)
	assert.Equal(t, []model.EventCategory{model.EventSuspiciousActivity}, f.events.categories())
}

func TestStandardAPI_CSRFRoundTrip(t *testing.T) {
	t.Parallel()
	f := newPresetFixture(t)
	h := f.presets.StandardAPI().Then(okHandler(nil))
	token, cookie := f.csrfPair(t)

	withPair := postJSON("/v1/echo", `{"message":"hi"}`)
	withPair.Header.Set("Authorization", "Bearer user")
	withPair.Header.Set(security.DefaultHeaderName, token)
	withPair.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withPair)
	assert.Equal(t, http.StatusOK, rr.Code)
	assertHardened(t, rr)

	noHeader := postJSON("/v1/echo", `{"message":"hi"}`)
	noHeader.Header.Set("Authorization", "Bearer user")
	noHeader.AddCookie(cookie)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, noHeader)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assertHardened(t, rr)
}

func TestStandardAPI_HiddenPayloadsRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"control characters inside tag", `{"message":"<scr\u0001ipt>alert(1)</scr\u0001ipt>"}`},
		{"payload after padding", `{"pad":"` + strings.Repeat("a", 70<<10) + `","message":"<script>alert(1)</script>"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newPresetFixture(t)
			token, cookie := f.csrfPair(t)
			called := false

			r := postJSON("/v1/echo", tt.body)
			r.Header.Set("Authorization", "Bearer user")
			r.Header.Set(security.DefaultHeaderName, token)
			r.AddCookie(cookie)
			rr := httptest.NewRecorder()
			f.presets.StandardAPI().Then(okHandler(&called)).ServeHTTP(rr, r)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.False(t, called)
			assert.Equal(t, []model.EventCategory{model.EventSuspiciousActivity}, f.events.categories())
		})
	}
}

func TestStandardAPI_Unauthenticated(t *testing.T) {
	t.Parallel()
	f := newPresetFixture(t)

	rr := httptest.NewRecorder()
	f.presets.StandardAPI().Then(okHandler(nil)).ServeHTTP(rr, postJSON("/v1/echo", `{}`))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assertHardened(t, rr)
}

func TestStandardAPI_RateLimited(t *testing.T) {
	t.Parallel()
	f := newPresetFixture(t, ratelimit.Policy{Name: PolicyAPI, MaxRequests: 1, Window: time.Minute})
	h := f.presets.StandardAPI().Then(okHandler(nil))

	get := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/v1/items", nil)
		r.Header.Set("Authorization", "Bearer user")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		return rr
	}

	assert.Equal(t, http.StatusOK, get().Code)

	rr := get()
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assertHardened(t, rr)
}

func TestStandardAPI_HandlerPanicContained(t *testing.T) {
	t.Parallel()
	f := newPresetFixture(t)

	h := f.presets.StandardAPI().ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	r := httptest.NewRequest(http.MethodGet, "/v1/items", nil)
	r.Header.Set("Authorization", "Bearer user")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assertHardened(t, rr)
	assert.Equal(t, []model.EventCategory{model.EventInternalError}, f.events.categories())
}

// ============================================================================
// Other Preset Tests
// ============================================================================

func TestAuthEndpoint_NoCredentialsNeeded(t *testing.T) {
	t.Parallel()
	f := newPresetFixture(t, ratelimit.Policy{Name: PolicyAuth, MaxRequests: 2, Window: time.Minute, Key: ratelimit.ByIPAndRoute})
	h := f.presets.AuthEndpoint().Then(okHandler(nil))

	for range 2 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, postJSON("/v1/auth/login", `{"email":"a@example.com"}`))
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postJSON("/v1/auth/login", `{"email":"a@example.com"}`))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, postJSON("/v1/auth/register", `{}`))
	assert.Equal(t, http.StatusOK, rr.Code, "routes are counted separately")
}

func TestAdminOnly(t *testing.T) {
	t.Parallel()
	f := newPresetFixture(t)
	h := f.presets.AdminOnly().Then(okHandler(nil))

	for _, tt := range []struct {
		auth   string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer user", http.StatusForbidden},
		{"Bearer admin", http.StatusOK},
	} {
		r := httptest.NewRequest(http.MethodGet, "/v1/admin/ping", nil)
		if tt.auth != "" {
			r.Header.Set("Authorization", tt.auth)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		assert.Equal(t, tt.status, rr.Code, tt.auth)
	}
}

func TestAdminOnly_LimitedPerUser(t *testing.T) {
	t.Parallel()
	f := newPresetFixture(t, ratelimit.Policy{Name: PolicyAdmin, MaxRequests: 1, Window: time.Minute, Key: ByUser})
	h := f.presets.AdminOnly().Then(okHandler(nil))

	serve := func() int {
		r := httptest.NewRequest(http.MethodGet, "/v1/admin/ping", nil)
		r.Header.Set("Authorization", "Bearer admin")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, serve())
	assert.Equal(t, http.StatusTooManyRequests, serve())
}

func TestFileUpload_LargeBodyAllowed(t *testing.T) {
	t.Parallel()
	f := newPresetFixture(t)
	token, cookie := f.csrfPair(t)

	body := strings.Repeat("z", DefaultMaxBodyBytes+1)
	r := httptest.NewRequest(http.MethodPost, "/v1/files", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/octet-stream")
	r.Header.Set("Authorization", "Bearer user")
	r.Header.Set(security.DefaultHeaderName, token)
	r.AddCookie(cookie)

	rr := httptest.NewRecorder()
	f.presets.FileUpload().Then(okHandler(nil)).ServeHTTP(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestFileUpload_TextFieldScanned(t *testing.T) {
	t.Parallel()
	f := newPresetFixture(t)
	token, cookie := f.csrfPair(t)
	called := false

	body, contentType := multipartForm(t, map[string]string{"title": "x' OR 1=1 --"}, "notes.txt", "plain text")
	r := httptest.NewRequest(http.MethodPost, "/v1/files", bytes.NewReader(body))
	r.Header.Set("Content-Type", contentType)
	r.Header.Set("Authorization", "Bearer user")
	r.Header.Set(security.DefaultHeaderName, token)
	r.AddCookie(cookie)

	rr := httptest.NewRecorder()
	f.presets.FileUpload().Then(okHandler(&called)).ServeHTTP(rr, r)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, called)
}

func TestPresets_ConfiguredBodyLimit(t *testing.T) {
	t.Parallel()
	l := newTestLimiter(t)
	registerDefaultPolicies(t, l)
	presets := NewPresets(PresetDeps{
		Detector:     security.NewDetector(),
		Limiter:      l,
		Headers:      security.NewHeaderWriter(security.HeaderConfig{}),
		MaxBodyBytes: 16,
	})

	rr := httptest.NewRecorder()
	r := postJSON("/v1/auth/login", `{"email":"someone@example.com"}`)
	presets.AuthEndpoint().Then(okHandler(nil)).ServeHTTP(rr, r)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPublic_Anonymous(t *testing.T) {
	t.Parallel()
	f := newPresetFixture(t)

	var userID string
	h := f.presets.Public().ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = GetUserID(r.Context())
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/search?q=boots", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, userID)

	r := httptest.NewRequest(http.MethodGet, "/v1/search?q=boots", nil)
	r.Header.Set("Authorization", "Bearer user")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "u-user", userID)
}

func TestKeyFuncByName(t *testing.T) {
	t.Parallel()

	for name := range KeyFuncs {
		fn, err := KeyFuncByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, fn)
	}
	_, err := KeyFuncByName("cookie")
	assert.Error(t, err)
}
