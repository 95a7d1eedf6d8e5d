package handler

import (
	"errors"
	"net/http"

	"github.com/forgo/bastion/internal/middleware"
)

// EchoRequest is the validated body of POST /v1/echo
type EchoRequest struct {
	Message string   `json:"message" validate:"required,max=1000"`
	Tags    []string `json:"tags,omitempty" validate:"max=10,dive,required,max=50"`
}

// EchoResponse returns what the pipeline let through, after normalization.
type EchoResponse struct {
	Message string   `json:"message"`
	Tags    []string `json:"tags,omitempty"`
	UserID  string   `json:"user_id"`
}

// Echo handles POST /v1/echo. It must be mounted behind Validate[EchoRequest].
func Echo(w http.ResponseWriter, r *http.Request) error {
	req, ok := middleware.ValidatedBody[EchoRequest](r.Context())
	if !ok {
		return errors.New("echo mounted without body validation")
	}

	WriteData(w, http.StatusOK, EchoResponse{
		Message: req.Message,
		Tags:    req.Tags,
		UserID:  middleware.GetUserID(r.Context()),
	}, nil)
	return nil
}
