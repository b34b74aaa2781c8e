package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxUploadSizeBytes = 10 << 20

var (
	ErrFileRequired = errors.New("file is required")
	ErrFileEmpty    = errors.New("file is empty")
	ErrFileTooLarge = errors.New("file is too large")
	ErrNotAnImage   = errors.New("file must be an image")
)

// ReadImageDataURI extracts the named multipart file from r, verifies it is a
// reasonably sized image, and returns it as a base64 data URI ready for
// Cloudinary's file parameter.
func ReadImageDataURI(r *http.Request, field string) (string, error) {
	if err := r.ParseMultipartForm(maxUploadSizeBytes); err != nil {
		return "", ErrFileRequired
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return "", ErrFileRequired
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
	if err != nil {
		return "", fmt.Errorf("read uploaded file: %w", err)
	}
	if len(data) == 0 {
		return "", ErrFileEmpty
	}
	if len(data) > maxUploadSizeBytes {
		return "", ErrFileTooLarge
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return "", ErrNotAnImage
	}

	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
}
