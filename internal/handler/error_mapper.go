package handler

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/forgo/bastion/internal/model"
)

var (
	ErrFileMissing     = errors.New("file part missing")
	ErrFileTooLarge    = errors.New("file exceeds upload limit")
	ErrMalformedUpload = errors.New("malformed multipart body")
)

// MapError turns handler errors into denials. Unknown errors pass through
// unchanged and end up as a generic 500.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := model.AsDenial(err); ok {
		return err
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, multipart.ErrMessageTooLarge):
		return &model.Denial{Kind: model.DenialValidation, Reason: "upload too large", Err: err}
	case errors.Is(err, ErrFileMissing),
		errors.Is(err, ErrMalformedUpload),
		errors.Is(err, http.ErrMissingFile),
		errors.Is(err, http.ErrNotMultipart),
		errors.Is(err, http.ErrMissingBoundary):
		return &model.Denial{Kind: model.DenialValidation, Reason: "malformed upload", Err: err}
	}
	return err
}
