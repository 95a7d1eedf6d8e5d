package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgo/bastion/internal/config"
	"github.com/forgo/bastion/internal/model"
	"github.com/forgo/bastion/internal/ratelimit"
)

// eventCapture records security events in memory.
type eventCapture struct {
	mu     sync.Mutex
	events []model.SecurityEvent
}

func (c *eventCapture) Record(_ context.Context, ev model.SecurityEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *eventCapture) all() []model.SecurityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.SecurityEvent(nil), c.events...)
}

func (c *eventCapture) categories() []model.EventCategory {
	var out []model.EventCategory
	for _, ev := range c.all() {
		out = append(out, ev.Category)
	}
	return out
}

// stubAuth returns a fixed principal, or errNoToken when the request carries
// no Authorization header.
type stubAuth struct {
	principal *model.Principal
}

var errNoToken = errors.New("no token")

func (a stubAuth) Authenticate(r *http.Request) (*model.Principal, error) {
	if r.Header.Get("Authorization") == "" {
		return nil, errNoToken
	}
	return a.principal, nil
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) model.ProblemDetails {
	t.Helper()
	var p model.ProblemDetails
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p), "body: %s", rr.Body.String())
	return p
}

// captureHandler records whether it ran and the request context it saw.
type captureHandler struct {
	called bool
	ctx    context.Context
}

func (h *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

// registerDefaultPolicies registers every configured default policy that l
// does not already hold.
func registerDefaultPolicies(t *testing.T, l *ratelimit.Limiter) {
	t.Helper()
	for _, pc := range config.DefaultPolicies {
		if _, ok := l.Policy(pc.Name); ok {
			continue
		}
		key, err := KeyFuncByName(pc.Key)
		require.NoError(t, err)
		l.MustRegister(ratelimit.Policy{Name: pc.Name, MaxRequests: pc.MaxRequests, Window: pc.Window, Key: key})
	}
}
