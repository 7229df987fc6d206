package handler

import (
	"net/http"

	"github.com/mcoot/townserver/internal/api/apierr"
	"github.com/mcoot/townserver/internal/api/landerr"
)

// Re-export from apierr for convenience
type ErrorResponse = apierr.ErrorResponse

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// WriteLandError writes an XML error marker for the game client
func WriteLandError(w http.ResponseWriter, err error) {
	landerr.Write(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}
