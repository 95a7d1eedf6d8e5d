package handler

import (
	"net/http"

	"github.com/forgo/bastion/internal/security"
)

// NamePreviewResponse is the body of GET /v1/names/preview
type NamePreviewResponse struct {
	Input     string `json:"input"`
	Sanitized string `json:"sanitized"`
}

// PreviewName handles GET /v1/names/preview?name=... and shows how an
// uploaded file name would be stored.
func PreviewName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	WriteData(w, http.StatusOK, NamePreviewResponse{
		Input:     name,
		Sanitized: security.SanitizeName(name),
	}, nil)
}
