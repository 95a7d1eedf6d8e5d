package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"github.com/forgo/bastion/internal/security"
)

// maxMemory is how much of a multipart form is held in memory before
// spilling to temp files.
const maxMemory = 1 << 20

// FileHandler accepts uploads and reports the name they would be stored under.
type FileHandler struct {
	maxBytes int64
}

func NewFileHandler(maxBytes int64) *FileHandler {
	return &FileHandler{maxBytes: maxBytes}
}

// UploadResponse describes an accepted file
type UploadResponse struct {
	OriginalName string `json:"original_name"`
	StoredName   string `json:"stored_name"`
	Size         int64  `json:"size"`
	SHA256       string `json:"sha256"`
	ContentType  string `json:"content_type,omitempty"`
}

// Upload handles POST /v1/files with a multipart "file" part.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return MapError(fmt.Errorf("%w: %w", ErrMalformedUpload, err))
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		return MapError(fmt.Errorf("%w: %w", ErrFileMissing, err))
	}
	defer func() { _ = file.Close() }()

	if h.maxBytes > 0 && header.Size > h.maxBytes {
		return MapError(ErrFileTooLarge)
	}

	sum := sha256.New()
	size, err := io.Copy(sum, file)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	WriteData(w, http.StatusCreated, UploadResponse{
		OriginalName: header.Filename,
		StoredName:   security.SanitizeName(header.Filename),
		Size:         size,
		SHA256:       hex.EncodeToString(sum.Sum(nil)),
		ContentType:  header.Header.Get("Content-Type"),
	}, nil)
	return nil
}
