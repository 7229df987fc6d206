package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/townserver/internal/api/middleware"
	"github.com/mcoot/townserver/internal/api/request"
	"github.com/mcoot/townserver/internal/api/response"
	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/services/pending"
)

// PendingHandler handles pending town submission and moderation
type PendingHandler struct {
	registry   *pending.Registry
	daysToKeep int
	logger     *slog.Logger
}

// NewPendingHandler creates a new pending town handler
func NewPendingHandler(registry *pending.Registry, daysToKeep int, logger *slog.Logger) *PendingHandler {
	return &PendingHandler{registry: registry, daysToKeep: daysToKeep, logger: logger}
}

// Submit handles POST /api/v1/public/pending-towns
func (h *PendingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	data, err := readUpload(r, "file")
	if err != nil {
		WriteError(w, err)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	townName := strings.TrimSpace(r.FormValue("town_name"))
	if email == "" || !strings.Contains(email, "@") {
		WriteError(w, NewInvalidRequestError("a valid email is required"))
		return
	}
	if townName == "" {
		WriteError(w, NewInvalidRequestError("town_name is required"))
		return
	}

	path, err := h.registry.Stage(r.Context(), data)
	if err != nil {
		WriteError(w, err)
		return
	}

	id, err := h.registry.Submit(r.Context(), pending.SubmitParams{
		Email:       email,
		TownName:    townName,
		Description: r.FormValue("description"),
		FilePath:    path,
		FileSize:    int64(len(data)),
	})
	if err != nil {
		_ = os.Remove(path)
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.Submitted{
		Success: true,
		Message: "Town submitted for review",
		ID:      id,
	})
}

// List handles GET /api/v1/pending-towns, optionally filtered by ?email=
func (h *PendingHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		towns []*model.PendingTown
		err   error
	)
	if email := r.URL.Query().Get("email"); email != "" {
		towns, err = h.registry.ListPendingByEmail(r.Context(), email)
	} else {
		towns, err = h.registry.ListPending(r.Context())
	}
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PendingTownListFromModel(towns))
}

// Get handles GET /api/v1/pending-towns/{id}
func (h *PendingHandler) Get(w http.ResponseWriter, r *http.Request) {
	town, err := h.registry.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PendingTownFromModel(town))
}

// Approve handles POST /api/v1/pending-towns/approve
func (h *PendingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req request.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.ID == "" {
		WriteError(w, NewInvalidRequestError("id is required"))
		return
	}

	outcome, err := h.registry.Approve(r.Context(), req.ID, req.TargetEmail)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Info("moderator approved town",
		slog.String("moderator", middleware.GetModerator(r.Context())),
		slog.String("id", req.ID),
		slog.String("outcome", outcome.String()),
	)

	msg := "Town approved and imported"
	if outcome == pending.OutcomeApprovedStatusStale {
		msg = "Town imported but its status could not be recorded"
	}
	response.JSON(w, http.StatusOK, response.Approved{Success: true, Message: msg, Outcome: outcome.String()})
}

// Reject handles POST /api/v1/pending-towns/reject
func (h *PendingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req request.RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.ID == "" {
		WriteError(w, NewInvalidRequestError("id is required"))
		return
	}

	if err := h.registry.Reject(r.Context(), req.ID, req.Reason); err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Info("moderator rejected town",
		slog.String("moderator", middleware.GetModerator(r.Context())),
		slog.String("id", req.ID),
	)
	response.JSON(w, http.StatusOK, response.Message{Success: true, Message: "Town rejected"})
}

// Cleanup handles POST /api/v1/pending-towns/cleanup
func (h *PendingHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req request.CleanupRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, NewInvalidRequestError("invalid request body"))
			return
		}
	}

	days := h.daysToKeep
	if req.DaysToKeep != nil {
		if *req.DaysToKeep < 0 {
			WriteError(w, NewInvalidRequestError("days_to_keep must not be negative"))
			return
		}
		days = *req.DaysToKeep
	}

	removed, err := h.registry.CleanupOld(r.Context(), days)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Cleanup{Success: true, Removed: removed})
}
