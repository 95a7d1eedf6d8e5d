// Package security holds the stateless request-protection primitives used by
// the middleware pipeline.
//
//   - Detector: regexp signatures for SQL injection, XSS, path traversal,
//     command injection and scanner user agents
//   - Canonical: the NFC, control-free form bodies are normalized to and
//     that the detector also scans
//   - SanitizeName: turns untrusted names into safe storage identifiers
//   - CSRFGuard: double-submit cookie tokens with constant-time comparison
//   - HeaderWriter: hardening response headers and the assembled CSP
//
// Nothing in this package writes responses or logs; the middleware package
// turns results into denials and security events.
package security
