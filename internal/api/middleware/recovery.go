package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/townserver/internal/api/apierr"
	"github.com/mcoot/townserver/internal/api/landerr"
	"github.com/mcoot/townserver/internal/middleware"
	"github.com/mcoot/townserver/internal/model"
)

// Recovery creates panic recovery middleware for the JSON API
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, apiPanicHandler)
}

// LandRecovery creates panic recovery middleware for the game-facing routes.
// Panics are reported with the XML error marker.
func LandRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, landPanicHandler)
}

func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}

func landPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	landerr.Write(w, model.ErrStorage)
}
