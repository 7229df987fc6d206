package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/townserver/internal/api/request"
	"github.com/mcoot/townserver/internal/api/response"
	"github.com/mcoot/townserver/internal/services/auth"
)

// TokenHandler lets players with a password swap their access token
type TokenHandler struct {
	auth *auth.Service
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(authService *auth.Service) *TokenHandler {
	return &TokenHandler{auth: authService}
}

// Rotate handles POST /api/v1/public/token
func (h *TokenHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	var req request.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, NewInvalidRequestError("email and password are required"))
		return
	}

	token, err := h.auth.RotateToken(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Token{Success: true, AccessToken: token})
}
