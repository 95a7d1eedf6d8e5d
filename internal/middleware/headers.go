package middleware

import (
	"net/http"

	"github.com/forgo/bastion/internal/security"
)

// SecureHeaders sets the hardening headers before calling next, so every
// response from later steps carries them, denials included.
func SecureHeaders(hw *security.HeaderWriter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hw.Decorate(w.Header())
			next.ServeHTTP(w, r)
		})
	}
}
