package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/forgo/bastion/internal/audit"
	"github.com/forgo/bastion/internal/middleware"
	"github.com/forgo/bastion/internal/ratelimit"
	"github.com/forgo/bastion/internal/security"
)

// RouterConfig holds everything the routes are built from
type RouterConfig struct {
	Presets   *middleware.Presets
	CSRF      *security.CSRFGuard
	Validator *validator.Validate
	Events    audit.Recorder
	Limiter   *ratelimit.Limiter

	Health  *HealthHandler
	Metrics http.Handler // nil disables /metrics

	// DevTokens, when set, mounts POST /v1/auth/dev-token.
	DevTokens TokenSigner

	UploadMaxBytes int64
}

// NewRouter mounts every endpoint behind its preset.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()
	p := cfg.Presets

	if cfg.Health == nil {
		cfg.Health = NewHealthHandler(nil)
	}
	mux.HandleFunc("GET /health", cfg.Health.Health)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	csrfHandler := NewCSRFHandler(cfg.CSRF)
	mux.Handle("GET /v1/csrf-token", p.StandardAPI().Then(middleware.Handle(csrfHandler.Token)))

	mux.Handle("POST /v1/echo", p.StandardAPI().
		With(middleware.NewStep(middleware.StepValidate, middleware.Validate[EchoRequest](cfg.Validator, cfg.Events))).
		Then(middleware.Handle(Echo)))

	fileHandler := NewFileHandler(cfg.UploadMaxBytes)
	mux.Handle("POST /v1/files", p.FileUpload().Then(middleware.Handle(fileHandler.Upload)))

	adminHandler := NewAdminHandler(cfg.Limiter)
	mux.Handle("GET /v1/admin/ping", p.AdminOnly().Then(middleware.Handle(adminHandler.Ping)))

	mux.Handle("GET /v1/names/preview", p.Public().ThenFunc(PreviewName))

	if cfg.DevTokens != nil {
		devHandler := NewDevTokenHandler(cfg.DevTokens)
		mux.Handle("POST /v1/auth/dev-token", p.AuthEndpoint().
			With(middleware.NewStep(middleware.StepValidate, middleware.Validate[DevTokenRequest](cfg.Validator, cfg.Events))).
			Then(middleware.Handle(devHandler.Issue)))
	}

	return mux
}
