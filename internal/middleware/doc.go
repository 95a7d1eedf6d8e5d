// Package middleware composes the request-protection pipeline.
//
// A Pipeline is an ordered list of named Steps. Compose folds it around a
// handler so the first step runs first:
//
//	pipeline := middleware.NewPipeline(
//	    middleware.NewStep("security-headers", middleware.SecureHeaders(hw)),
//	    middleware.NewStep("error-containment", middleware.ErrorContainment(events)),
//	    middleware.NewStep("rate-limit", middleware.RateLimit(limiter, "api", events)),
//	)
//	mux.Handle("POST /v1/echo", pipeline.Then(handler))
//
// The conventional order is: security headers, error containment, pattern
// guard, normalization, rate limiting, authentication, CSRF, schema
// validation, handler. Presets bind that order to named rate-limit policies.
//
// Any step may reject. A rejection writes a generic RFC 9457 problem and
// records one security event carrying the specific reason.
//
// # Context Values
//
//   - GetRequestID(ctx): request identifier
//   - GetPrincipal(ctx), GetUserID(ctx): authenticated caller
//   - ValidatedBody[T](ctx): body checked by Validate[T]
package middleware
