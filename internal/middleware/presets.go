package middleware

import (
	"fmt"

	"github.com/forgo/bastion/internal/audit"
	"github.com/forgo/bastion/internal/ratelimit"
	"github.com/forgo/bastion/internal/security"
)

// Rate-limit policy names bound by the presets.
const (
	PolicyAPI        = "api"
	PolicyAuth       = "auth"
	PolicyFileUpload = "fileUpload"
	PolicyAdmin      = "admin"
	PolicySearch     = "search"
)

// Step names.
const (
	StepHeaders      = "security-headers"
	StepContainment  = "error-containment"
	StepPatterns     = "pattern-guard"
	StepNormalize    = "normalize"
	StepRateLimit    = "rate-limit"
	StepAuthenticate = "authenticate"
	StepRequireRole  = "require-role"
	StepCSRF         = "csrf"
	StepValidate     = "validate"
)

// KeyFuncs maps configuration names to key derivation strategies.
var KeyFuncs = map[string]ratelimit.KeyFunc{
	"ip":       ratelimit.ByIP,
	"ip_route": ratelimit.ByIPAndRoute,
	"user":     ByUser,
}

// KeyFuncByName resolves a configured key strategy.
func KeyFuncByName(name string) (ratelimit.KeyFunc, error) {
	if fn, ok := KeyFuncs[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("unknown rate limit key %q", name)
}

// PresetDeps are the shared collaborators every preset is built from.
type PresetDeps struct {
	Detector *security.Detector
	Limiter  *ratelimit.Limiter
	CSRF     *security.CSRFGuard
	Headers  *security.HeaderWriter
	Auth     Authenticator
	Events   audit.Recorder

	// Body limits. Zero values fall back to DefaultMaxBodyBytes and
	// UploadMaxBodyBytes. Pattern inspection covers the whole permitted body.
	MaxBodyBytes       int64
	UploadMaxBodyBytes int64
}

// Presets builds the named pipelines. They are plain Pipelines and can be
// extended with With.
type Presets struct {
	d PresetDeps
}

func NewPresets(d PresetDeps) *Presets {
	if d.Events == nil {
		d.Events = audit.Discard
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if d.UploadMaxBodyBytes <= 0 {
		d.UploadMaxBodyBytes = UploadMaxBodyBytes
	}
	return &Presets{d: d}
}

func (p *Presets) headers() Step {
	return NewStep(StepHeaders, SecureHeaders(p.d.Headers))
}

func (p *Presets) containment() Step {
	return NewStep(StepContainment, ErrorContainment(p.d.Events))
}

// patterns scans bodies up to maxBody, the same cap normalize enforces, so no
// accepted body has an unscanned tail. Zero disables body inspection.
func (p *Presets) patterns(maxBody int64) Step {
	return NewStep(StepPatterns, PatternGuard(p.d.Detector, p.d.Events, PatternOptions{
		InspectBody:     maxBody > 0,
		MaxInspectBytes: maxBody,
	}))
}

func (p *Presets) normalize(maxBody int64) Step {
	return NewStep(StepNormalize, Normalize(p.d.Events, NormalizeOptions{MaxBodyBytes: maxBody}))
}

func (p *Presets) rateLimit(policy string) Step {
	return NewStep(StepRateLimit, RateLimit(p.d.Limiter, policy, p.d.Events))
}

func (p *Presets) authenticate() Step {
	return NewStep(StepAuthenticate, Authenticate(p.d.Auth, p.d.Events))
}

func (p *Presets) csrf() Step {
	return NewStep(StepCSRF, CSRF(p.d.CSRF, p.d.Events))
}

// StandardAPI is the default for authenticated endpoints.
func (p *Presets) StandardAPI() *Pipeline {
	return NewPipeline(
		p.headers(),
		p.containment(),
		p.patterns(p.d.MaxBodyBytes),
		p.normalize(p.d.MaxBodyBytes),
		p.rateLimit(PolicyAPI),
		p.authenticate(),
		p.csrf(),
	)
}

// AuthEndpoint serves login-style routes: no principal exists yet, so there
// is no authentication or CSRF step, and the budget is strict per IP and route.
func (p *Presets) AuthEndpoint() *Pipeline {
	return NewPipeline(
		p.headers(),
		p.containment(),
		p.patterns(p.d.MaxBodyBytes),
		p.normalize(p.d.MaxBodyBytes),
		p.rateLimit(PolicyAuth),
	)
}

// FileUpload accepts larger multipart bodies. Text fields are pattern scanned;
// file contents are not.
func (p *Presets) FileUpload() *Pipeline {
	return NewPipeline(
		p.headers(),
		p.containment(),
		p.patterns(p.d.UploadMaxBodyBytes),
		p.normalize(p.d.UploadMaxBodyBytes),
		p.rateLimit(PolicyFileUpload),
		p.authenticate(),
		p.csrf(),
	)
}

// AdminOnly authenticates before counting so the admin budget is per user.
func (p *Presets) AdminOnly() *Pipeline {
	return NewPipeline(
		p.headers(),
		p.containment(),
		p.patterns(p.d.MaxBodyBytes),
		p.normalize(p.d.MaxBodyBytes),
		p.authenticate(),
		NewStep(StepRequireRole, RequireRole("admin", p.d.Events)),
		p.rateLimit(PolicyAdmin),
		p.csrf(),
	)
}

// Public serves anonymous read endpoints.
func (p *Presets) Public() *Pipeline {
	return NewPipeline(
		p.headers(),
		p.containment(),
		p.patterns(0),
		p.rateLimit(PolicySearch),
		NewStep(StepAuthenticate, OptionalAuthenticate(p.d.Auth)),
	)
}
