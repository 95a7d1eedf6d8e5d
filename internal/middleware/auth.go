package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/forgo/bastion/internal/audit"
	"github.com/forgo/bastion/internal/model"
	"github.com/forgo/bastion/pkg/jwt"
)

var (
	ErrNoCredentials      = errors.New("missing authorization header")
	ErrMalformedAuthValue = errors.New("invalid authorization header format")
)

// Authenticator resolves the caller of a request. Identity verification
// lives behind this interface.
type Authenticator interface {
	Authenticate(r *http.Request) (*model.Principal, error)
}

// TokenValidator validates bearer tokens
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// BearerAuthenticator reads an RS256 access token from the Authorization header.
type BearerAuthenticator struct {
	tokens TokenValidator
}

func NewBearerAuthenticator(tokens TokenValidator) *BearerAuthenticator {
	return &BearerAuthenticator{tokens: tokens}
}

func (a *BearerAuthenticator) Authenticate(r *http.Request) (*model.Principal, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, ErrNoCredentials
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrMalformedAuthValue
	}

	claims, err := a.tokens.Validate(parts[1])
	if err != nil {
		return nil, err
	}

	return &model.Principal{
		UserID:   claims.UserID,
		Email:    claims.Email,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}

// Authenticate requires a principal. Failures are 401 with a generic body;
// the reason goes to the event log.
func Authenticate(a Authenticator, events audit.Recorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Authenticate(r)
			if err != nil || p == nil || p.UserID == "" {
				if err == nil {
					err = errors.New("no principal")
				}
				reject(w, r, events, &model.Denial{Kind: model.DenialAuthenticationMissing, Err: err})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// OptionalAuthenticate sets the principal when valid credentials are present
// and continues anonymously otherwise.
func OptionalAuthenticate(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, err := a.Authenticate(r); err == nil && p != nil {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects principals lacking role with 403. It must run after
// Authenticate.
func RequireRole(role string, events audit.Recorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil {
				reject(w, r, events, model.Deny(model.DenialAuthenticationMissing, "role check without principal"))
				return
			}
			if !p.HasRole(role) {
				reject(w, r, events, model.Deny(model.DenialAuthorization, "requires role "+role+", has "+p.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetPrincipal extracts the authenticated principal from context
func GetPrincipal(ctx context.Context) *model.Principal {
	if p, ok := ctx.Value(PrincipalKey).(*model.Principal); ok {
		return p
	}
	return nil
}

// GetUserID extracts the user ID from context
func GetUserID(ctx context.Context) string {
	if p := GetPrincipal(ctx); p != nil {
		return p.UserID
	}
	return ""
}
