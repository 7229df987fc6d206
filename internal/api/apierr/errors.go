package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/services/auth"
)

// ErrorResponse is the JSON body of every failed moderation or admin call
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// Error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyDecided     = "ALREADY_DECIDED"
	CodeUserExists         = "USER_EXISTS"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with a code and message
type httpError struct {
	status  int
	code    string
	message string
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Success: false, Code: he.code, Error: he.message})
}

// Status returns the HTTP status err maps to
func Status(err error) int {
	return toHTTPError(err).status
}

func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, model.ErrPendingTownNotFound):
		return &httpError{http.StatusNotFound, CodeNotFound, "Pending town not found"}
	case errors.Is(err, model.ErrNotPending):
		return &httpError{http.StatusConflict, CodeAlreadyDecided, "Pending town has already been decided"}
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, CodeNotFound, "User not found"}
	case errors.Is(err, model.ErrUserExists):
		return &httpError{http.StatusConflict, CodeUserExists, "User already exists"}
	case errors.Is(err, model.ErrInvalidOwnerKey):
		return &httpError{http.StatusBadRequest, CodeInvalidRequest, "Invalid owner"}
	case errors.Is(err, model.ErrEmptyBody):
		return &httpError{http.StatusBadRequest, CodeInvalidRequest, "Uploaded file is empty"}
	case errors.Is(err, model.ErrMalformedBody):
		return &httpError{http.StatusBadRequest, CodeInvalidRequest, "Malformed request"}
	case errors.Is(err, model.ErrIdentityNotFound):
		return &httpError{http.StatusUnauthorized, CodeUnauthorized, "Unknown player"}
	case errors.Is(err, model.ErrIdentityConflict):
		return &httpError{http.StatusForbidden, CodeForbidden, "Player mismatch"}

	case errors.Is(err, auth.ErrInvalidEmail):
		return &httpError{http.StatusBadRequest, CodeInvalidRequest, "Invalid email"}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password"}

	default:
		return &httpError{http.StatusInternalServerError, CodeInternalError, "Internal server error"}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, CodeInvalidRequest, message}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, CodeUnauthorized, "Authentication required"}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, CodeInternalError, "Internal server error"}
}
