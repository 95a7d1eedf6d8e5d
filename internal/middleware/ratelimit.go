package middleware

import (
	"net/http"
	"strconv"

	"github.com/forgo/bastion/internal/audit"
	"github.com/forgo/bastion/internal/model"
	"github.com/forgo/bastion/internal/ratelimit"
)

// RateLimit counts every request against the named policy. X-RateLimit-*
// headers are set on every response; a limiter fault is a denial.
func RateLimit(limiter *ratelimit.Limiter, policy string, events audit.Recorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Check(r.Context(), policy, r)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if err != nil {
				reject(w, r, events, &model.Denial{
					Kind:       model.DenialRateLimited,
					Reason:     "limiter fault on policy " + policy,
					RetryAfter: res.RetryAfterSeconds,
					Err:        err,
				})
				return
			}
			if !res.Allowed {
				reject(w, r, events, &model.Denial{
					Kind:       model.DenialRateLimited,
					Reason:     "policy " + policy + " exhausted",
					RetryAfter: res.RetryAfterSeconds,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ByUser keys on the authenticated user and falls back to the client IP.
// It only sees a user when Authenticate runs before the rate limit step.
func ByUser(r *http.Request) string {
	if id := GetUserID(r.Context()); id != "" {
		return "user:" + id
	}
	return ratelimit.ByIP(r)
}
