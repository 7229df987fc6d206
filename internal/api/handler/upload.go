package handler

import (
	"fmt"
	"io"
	"net/http"
)

// MaxUploadSize caps multipart town uploads
const MaxUploadSize = 32 << 20

// readUpload parses a multipart form and returns the named file's bytes
func readUpload(r *http.Request, field string) ([]byte, error) {
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		return nil, NewInvalidRequestError("invalid multipart form")
	}
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, NewInvalidRequestError(fmt.Sprintf("%s is required", field))
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		return nil, NewInvalidRequestError("could not read upload")
	}
	if len(data) == 0 {
		return nil, NewInvalidRequestError(fmt.Sprintf("%s is empty", field))
	}
	if len(data) > MaxUploadSize {
		return nil, NewInvalidRequestError("upload too large")
	}
	return data, nil
}
