package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kalambet/skillgap/internal/document"
)

type uploadResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

// uploadHandler converts a multipart "file" field to text. allowed limits
// the accepted extensions; nil accepts every supported document type.
func (h *handler) uploadHandler(allowed ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, document.MaxSize+(1<<20))
		file, hdr, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "file exceeds %d MB", document.MaxSize>>20)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "missing file field: %v", err)
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(hdr.Filename))
		if !document.Supported(hdr.Filename) || (len(allowed) > 0 && !contains(allowed, ext)) {
			httpError(w, http.StatusUnsupportedMediaType, "invalid_request_error", "unsupported file type %q", ext)
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, document.MaxSize+1))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
			return
		}
		text, err := document.Extract(hdr.Filename, data)
		switch {
		case errors.Is(err, document.ErrTooLarge):
			httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "file exceeds %d MB", document.MaxSize>>20)
			return
		case err != nil:
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "extracting text: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, uploadResponse{
			Success: true,
			Text:    text,
			Message: "Text extracted from " + filepath.Base(hdr.Filename),
		})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
