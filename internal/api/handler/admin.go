package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/townserver/internal/api/middleware"
	"github.com/mcoot/townserver/internal/api/request"
	"github.com/mcoot/townserver/internal/api/response"
	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/services/auth"
	"github.com/mcoot/townserver/internal/services/currency"
	"github.com/mcoot/townserver/internal/services/town"
)

// AdminHandler handles operator endpoints for towns, balances and users
type AdminHandler struct {
	towns  *town.Store
	ledger *currency.Ledger
	auth   *auth.Service
	logger *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(towns *town.Store, ledger *currency.Ledger, authService *auth.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{towns: towns, ledger: ledger, auth: authService, logger: logger}
}

// ImportTown handles POST /api/v1/admin/towns/{owner}/import
func (h *AdminHandler) ImportTown(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	if err := model.CheckOwnerKey(owner); err != nil {
		WriteError(w, err)
		return
	}

	data, err := readUpload(r, "file")
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.towns.ImportBytes(r.Context(), data, owner); err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Info("admin imported town",
		slog.String("moderator", middleware.GetModerator(r.Context())),
		slog.String("owner", owner),
		slog.Int("size", len(data)),
	)
	response.JSON(w, http.StatusOK, response.Message{Success: true, Message: "Town imported"})
}

// GetCurrency handles GET /api/v1/admin/currency/{owner}
func (h *AdminHandler) GetCurrency(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	balance, err := h.ledger.Balance(owner)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Currency{Success: true, Owner: owner, Balance: balance})
}

// SetCurrency handles PUT /api/v1/admin/currency/{owner}
func (h *AdminHandler) SetCurrency(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	var req request.SetCurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	balance, err := h.ledger.Set(owner, req.Amount)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Info("admin set currency",
		slog.String("moderator", middleware.GetModerator(r.Context())),
		slog.String("owner", owner),
		slog.Int64("requested", req.Amount),
		slog.Int64("balance", balance),
	)
	response.JSON(w, http.StatusOK, response.Currency{Success: true, Owner: owner, Balance: balance})
}

// CreateUser handles POST /api/v1/admin/users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req request.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	var (
		user *model.User
		err  error
	)
	if req.Anonymous {
		user, err = h.auth.CreateAnonymous(r.Context())
	} else {
		user, err = h.auth.CreateUser(r.Context(), auth.CreateUserParams{
			Email:    req.Email,
			Password: req.Password,
			MayhemID: req.MayhemID,
		})
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.UserFromModel(user))
}
