package middleware

import (
	"net/http"

	"github.com/forgo/bastion/internal/audit"
	"github.com/forgo/bastion/internal/model"
	"github.com/forgo/bastion/internal/security"
)

// CSRF enforces the double-submit token on unsafe methods.
func CSRF(guard *security.CSRFGuard, events audit.Recorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := guard.Check(r); err != nil {
				reject(w, r, events, &model.Denial{Kind: model.DenialCSRF, Err: err})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
