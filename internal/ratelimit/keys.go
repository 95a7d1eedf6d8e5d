package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc derives the counter key for a request.
type KeyFunc func(r *http.Request) string

// ClientIP extracts the client address. Forwarding headers are honored, so
// the server must sit behind a proxy that overwrites them.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ByIP keys on the client address.
func ByIP(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// ByIPAndRoute keys on client address plus method and path, so one hot route
// cannot exhaust the budget of another.
func ByIPAndRoute(r *http.Request) string {
	return "ip:" + ClientIP(r) + "|" + r.Method + " " + r.URL.Path
}

// Static puts every request in one bucket.
func Static(name string) KeyFunc {
	return func(*http.Request) string {
		return "static:" + name
	}
}
