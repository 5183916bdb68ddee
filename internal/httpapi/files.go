package httpapi

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"modeium/backend/internal/adapters"
	"modeium/backend/internal/attachment"
	"modeium/backend/internal/models"
)

const multipartMemoryBytes = 8 << 20

// requestError is a rejection that happens before any adapter runs.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string {
	return e.message
}

// readMessageInput parses the multipart body of a message request. A missing
// file is left nil so the adapter reports it alongside the other fields.
func (h Handler) readMessageInput(w http.ResponseWriter, r *http.Request, variant string) (adapters.Input, func(), error) {
	cleanup := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxMultipartBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return adapters.Input{}, cleanup, &requestError{status: http.StatusRequestEntityTooLarge, message: attachment.ErrTooLarge.Error()}
		}
		return adapters.Input{}, cleanup, &requestError{status: http.StatusBadRequest, message: "request must be multipart/form-data"}
	}
	if r.MultipartForm != nil {
		form := r.MultipartForm
		cleanup = func() { _ = form.RemoveAll() }
	}

	in := adapters.Input{
		Message: r.FormValue("message"),
		APIKey:  r.FormValue("apiKey"),
	}
	if variant != models.VariantFile {
		return in, cleanup, nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return in, cleanup, nil
		}
		return in, cleanup, &requestError{status: http.StatusBadRequest, message: "failed to read uploaded file"}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, attachment.MaxSizeBytes+1))
	if err != nil {
		return in, cleanup, &requestError{status: http.StatusBadRequest, message: "failed to read uploaded file"}
	}

	filename := strings.TrimSpace(filepath.Base(header.Filename))
	mediaType := detectUploadMediaType(header.Header.Get("Content-Type"), filename, data)
	descriptor := attachment.Descriptor{Name: filename, MIMEType: mediaType, Size: int64(len(data)), Data: data}
	if err := attachment.Validate(descriptor); err != nil {
		if errors.Is(err, attachment.ErrTooLarge) {
			return in, cleanup, &requestError{status: http.StatusRequestEntityTooLarge, message: attachment.ErrTooLarge.Error()}
		}
		return in, cleanup, &requestError{status: http.StatusBadRequest, message: attachment.ErrInvalidType.Error()}
	}

	in.File = &adapters.Upload{Name: filename, MIMEType: attachment.BaseMediaType(mediaType), Data: data}
	return in, cleanup, nil
}

func detectUploadMediaType(headerContentType, filename string, data []byte) string {
	contentType := strings.TrimSpace(headerContentType)
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	return attachment.DetectMediaType(filename, data)
}
