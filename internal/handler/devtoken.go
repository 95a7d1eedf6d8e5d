package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/forgo/bastion/internal/middleware"
	"github.com/forgo/bastion/pkg/jwt"
)

// TokenSigner mints access tokens
type TokenSigner interface {
	Sign(claims jwt.Claims) (string, error)
}

// DevTokenHandler mints tokens for local development. It is only mounted
// outside production.
type DevTokenHandler struct {
	tokens TokenSigner
}

func NewDevTokenHandler(tokens TokenSigner) *DevTokenHandler {
	return &DevTokenHandler{tokens: tokens}
}

// DevTokenRequest is the validated body of POST /v1/auth/dev-token
type DevTokenRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
	Role   string `json:"role,omitempty" validate:"omitempty,oneof=user moderator admin"`
}

// DevTokenResponse carries a bearer token
type DevTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Issue handles POST /v1/auth/dev-token
func (h *DevTokenHandler) Issue(w http.ResponseWriter, r *http.Request) error {
	req, ok := middleware.ValidatedBody[DevTokenRequest](r.Context())
	if !ok {
		return errors.New("dev token mounted without body validation")
	}

	role := req.Role
	if role == "" {
		role = "user"
	}

	token, err := h.tokens.Sign(jwt.Claims{
		UserID: req.UserID,
		Email:  req.Email,
		Role:   role,
	})
	if err != nil {
		return fmt.Errorf("sign dev token: %w", err)
	}

	WriteJSON(w, http.StatusOK, DevTokenResponse{AccessToken: token, TokenType: "Bearer"})
	return nil
}
