// Package handler provides the HTTP endpoints served behind the protection
// pipeline.
//
// Every route is mounted behind a middleware preset in NewRouter:
//
//	GET  /health              no pipeline
//	GET  /metrics             no pipeline (Prometheus exposition)
//	GET  /v1/csrf-token       StandardAPI
//	POST /v1/echo             StandardAPI + Validate[EchoRequest]
//	POST /v1/files            FileUpload
//	GET  /v1/admin/ping       AdminOnly
//	GET  /v1/names/preview    Public
//	POST /v1/auth/dev-token   AuthEndpoint + Validate[DevTokenRequest] (non-production)
//
// Handlers that can fail return an error through middleware.Handle. Denials
// are written as their own problem; anything else becomes a generic 500.
package handler
