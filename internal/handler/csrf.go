package handler

import (
	"fmt"
	"net/http"

	"github.com/forgo/bastion/internal/security"
)

// CSRFHandler issues double-submit tokens
type CSRFHandler struct {
	guard *security.CSRFGuard
}

func NewCSRFHandler(guard *security.CSRFGuard) *CSRFHandler {
	return &CSRFHandler{guard: guard}
}

// CSRFTokenResponse is the body of GET /v1/csrf-token
type CSRFTokenResponse struct {
	Success   bool   `json:"success"`
	CSRFToken string `json:"csrfToken"`
}

// Token handles GET /v1/csrf-token. The route sits behind authentication, so
// anonymous callers never reach it.
func (h *CSRFHandler) Token(w http.ResponseWriter, r *http.Request) error {
	token, err := h.guard.GenerateToken()
	if err != nil {
		return fmt.Errorf("generate csrf token: %w", err)
	}

	h.guard.AttachToken(w, token)
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, CSRFTokenResponse{Success: true, CSRFToken: token})
	return nil
}
