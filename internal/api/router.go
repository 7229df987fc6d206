package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/townserver/internal/api/handler"
	"github.com/mcoot/townserver/internal/api/middleware"
	rootmw "github.com/mcoot/townserver/internal/middleware"
	"github.com/mcoot/townserver/internal/services/auth"
	"github.com/mcoot/townserver/internal/services/currency"
	"github.com/mcoot/townserver/internal/services/land"
	"github.com/mcoot/townserver/internal/services/pending"
	"github.com/mcoot/townserver/internal/services/stats"
	"github.com/mcoot/townserver/internal/services/town"
)

// LandPrefix is where the game client expects the land protocol
const LandPrefix = "/mh/games/bg_gameserver_plugin"

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger            *slog.Logger
	AuthService       *auth.Service
	LandService       *land.Service
	PendingRegistry   *pending.Registry
	TownStore         *town.Store
	Ledger            *currency.Ledger
	Tracker           *stats.Tracker
	PendingDaysToKeep int
}

// NewRouter creates a new router with the land protocol and the JSON API
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	landHandler := handler.NewLandHandler(cfg.LandService, cfg.Logger)
	pendingHandler := handler.NewPendingHandler(cfg.PendingRegistry, cfg.PendingDaysToKeep, cfg.Logger)
	adminHandler := handler.NewAdminHandler(cfg.TownStore, cfg.Ledger, cfg.AuthService, cfg.Logger)
	statsHandler := handler.NewStatsHandler(cfg.Tracker)
	tokenHandler := handler.NewTokenHandler(cfg.AuthService)

	// Create middleware
	moderatorMiddleware := middleware.ModeratorAuth(cfg.AuthService)
	loggingMiddleware := rootmw.Logging(cfg.Logger)

	// Game-facing land protocol (protobuf in, protobuf or XML out)
	game := r.PathPrefix(LandPrefix).Subrouter()
	game.Use(middleware.LandRecovery(cfg.Logger))
	game.Use(loggingMiddleware)

	game.HandleFunc("/protoland/{landId}/", landHandler.GetLand).Methods(http.MethodGet)
	game.HandleFunc("/protoland/{landId}/", landHandler.PutLand).Methods(http.MethodPut)
	game.HandleFunc("/protoland/{landId}/", landHandler.PostLand).Methods(http.MethodPost)
	game.HandleFunc("/extraLandUpdate/{landId}/protoland/", landHandler.ExtraLandUpdate).Methods(http.MethodPost)
	game.HandleFunc("/protoWholeLandToken/{landId}/", landHandler.WholeLandToken).Methods(http.MethodGet, http.MethodPost)
	game.HandleFunc("/deleteToken/{landId}/protoWholeLandToken/", landHandler.DeleteToken).Methods(http.MethodPost)

	// JSON API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(loggingMiddleware)

	// Public routes
	api.HandleFunc("/health", statsHandler.Health).Methods(http.MethodGet)
	api.HandleFunc("/stats", statsHandler.Stats).Methods(http.MethodGet)
	api.HandleFunc("/public/pending-towns", pendingHandler.Submit).Methods(http.MethodPost)
	api.HandleFunc("/public/token", tokenHandler.Rotate).Methods(http.MethodPost)

	// Moderation routes
	moderation := api.PathPrefix("/pending-towns").Subrouter()
	moderation.Use(moderatorMiddleware)
	moderation.HandleFunc("", pendingHandler.List).Methods(http.MethodGet)
	moderation.HandleFunc("/approve", pendingHandler.Approve).Methods(http.MethodPost)
	moderation.HandleFunc("/reject", pendingHandler.Reject).Methods(http.MethodPost)
	moderation.HandleFunc("/cleanup", pendingHandler.Cleanup).Methods(http.MethodPost)
	moderation.HandleFunc("/{id}", pendingHandler.Get).Methods(http.MethodGet)

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(moderatorMiddleware)
	admin.HandleFunc("/towns/{owner}/import", adminHandler.ImportTown).Methods(http.MethodPost)
	admin.HandleFunc("/currency/{owner}", adminHandler.GetCurrency).Methods(http.MethodGet)
	admin.HandleFunc("/currency/{owner}", adminHandler.SetCurrency).Methods(http.MethodPut)
	admin.HandleFunc("/users", adminHandler.CreateUser).Methods(http.MethodPost)

	return r
}
