package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/townserver/internal/api/landerr"
	"github.com/mcoot/townserver/internal/api/response"
	"github.com/mcoot/townserver/internal/middleware"
	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/protocol/landpb"
	"github.com/mcoot/townserver/internal/services/identity"
	"github.com/mcoot/townserver/internal/services/land"
)

// MaxLandBody caps land protocol request bodies
const MaxLandBody = 32 << 20

// Identity headers sent by the game client
const (
	HeaderMayhemID     = "mh_uid"
	HeaderNucleusToken = "nucleus_token"
	HeaderAuthParams   = "mh_auth_params"
	HeaderAccessToken  = "access_token"
)

// landUpdateAck is the fixed body returned after a POSTed land update
const landUpdateAck = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<WholeLandUpdateResponse/>`

// LandHandler handles the game-facing land protocol endpoints
type LandHandler struct {
	service *land.Service
	logger  *slog.Logger
}

// NewLandHandler creates a new land handler
func NewLandHandler(service *land.Service, logger *slog.Logger) *LandHandler {
	return &LandHandler{service: service, logger: logger}
}

// signalsFrom collects identity hints from the route and headers
func signalsFrom(r *http.Request) identity.Signals {
	var bearer string
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		bearer = strings.TrimPrefix(h, "Bearer ")
	}
	return identity.Signals{
		URLID:    mux.Vars(r)["landId"],
		HeaderID: r.Header.Get(HeaderMayhemID),
		Tokens: []string{
			r.Header.Get(HeaderNucleusToken),
			r.Header.Get(HeaderAuthParams),
			r.Header.Get(HeaderAccessToken),
			bearer,
		},
	}
}

func (h *LandHandler) readRequest(w http.ResponseWriter, r *http.Request) (*land.Request, error) {
	req := &land.Request{
		Signals:         signalsFrom(r),
		RemoteIP:        middleware.ClientIP(r),
		ContentEncoding: r.Header.Get("Content-Encoding"),
	}
	if r.Body == nil || r.Method == http.MethodGet {
		return req, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxLandBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", model.ErrMalformedBody, err)
	}
	req.Body = body
	return req, nil
}

func (h *LandHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := landerr.Status(err)
	attrs := []any{
		slog.String("op", op),
		slog.String("land_id", mux.Vars(r)["landId"]),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("land request failed", attrs...)
	} else {
		h.logger.Warn("land request rejected", attrs...)
	}
	WriteLandError(w, err)
}

// GetLand handles GET /mh/games/bg_gameserver_plugin/protoland/{landId}/
func (h *LandHandler) GetLand(w http.ResponseWriter, r *http.Request) {
	req, err := h.readRequest(w, r)
	if err != nil {
		h.fail(w, r, "get_land", err)
		return
	}
	body, err := h.service.GetLand(r.Context(), req)
	if err != nil {
		h.fail(w, r, "get_land", err)
		return
	}
	response.Binary(w, landpb.ContentType, body)
}

// PutLand handles PUT /mh/games/bg_gameserver_plugin/protoland/{landId}/
func (h *LandHandler) PutLand(w http.ResponseWriter, r *http.Request) {
	req, err := h.readRequest(w, r)
	if err != nil {
		h.fail(w, r, "put_land", err)
		return
	}
	body, err := h.service.PutLand(r.Context(), req)
	if err != nil {
		h.fail(w, r, "put_land", err)
		return
	}
	response.Binary(w, landpb.ContentType, body)
}

// PostLand handles POST /mh/games/bg_gameserver_plugin/protoland/{landId}/
func (h *LandHandler) PostLand(w http.ResponseWriter, r *http.Request) {
	req, err := h.readRequest(w, r)
	if err != nil {
		h.fail(w, r, "post_land", err)
		return
	}
	if err := h.service.PostLand(r.Context(), req); err != nil {
		h.fail(w, r, "post_land", err)
		return
	}
	response.XML(w, http.StatusOK, landUpdateAck)
}

// ExtraLandUpdate handles POST /mh/games/bg_gameserver_plugin/extraLandUpdate/{landId}/protoland/
func (h *LandHandler) ExtraLandUpdate(w http.ResponseWriter, r *http.Request) {
	req, err := h.readRequest(w, r)
	if err != nil {
		h.fail(w, r, "extra_land_update", err)
		return
	}
	body, err := h.service.ExtraLandUpdate(r.Context(), req, mux.Vars(r)["landId"])
	if err != nil {
		h.fail(w, r, "extra_land_update", err)
		return
	}
	response.Binary(w, landpb.ContentType, body)
}

// WholeLandToken handles GET and POST /mh/games/bg_gameserver_plugin/protoWholeLandToken/{landId}/
func (h *LandHandler) WholeLandToken(w http.ResponseWriter, r *http.Request) {
	req, err := h.readRequest(w, r)
	if err != nil {
		h.fail(w, r, "whole_land_token", err)
		return
	}
	body, err := h.service.GetWholeLandToken(r.Context(), req)
	if err != nil {
		h.fail(w, r, "whole_land_token", err)
		return
	}
	response.Binary(w, landpb.ContentType, body)
}

// DeleteToken handles POST /mh/games/bg_gameserver_plugin/deleteToken/{landId}/protoWholeLandToken/
func (h *LandHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	req, err := h.readRequest(w, r)
	if err != nil {
		h.fail(w, r, "delete_token", err)
		return
	}
	body, err := h.service.DeleteToken(r.Context(), req)
	if err != nil {
		h.fail(w, r, "delete_token", err)
		return
	}
	response.Binary(w, landpb.ContentType, body)
}
