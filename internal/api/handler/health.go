package handler

import (
	"net/http"

	"github.com/mcoot/townserver/internal/api/response"
	"github.com/mcoot/townserver/internal/services/stats"
)

// StatsHandler serves health and live connection statistics
type StatsHandler struct {
	tracker *stats.Tracker
}

func NewStatsHandler(tracker *stats.Tracker) *StatsHandler {
	return &StatsHandler{tracker: tracker}
}

// Health handles GET /api/v1/health
func (h *StatsHandler) Health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

// Stats handles GET /api/v1/stats
func (h *StatsHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	h.tracker.Sweep()
	response.JSON(w, http.StatusOK, h.tracker.Snapshot())
}
