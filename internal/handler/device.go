package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/mediline/telehealth-server-go/internal/errors"
	"github.com/mediline/telehealth-server-go/internal/middleware"
	"github.com/mediline/telehealth-server-go/internal/service"
)

type DeviceHandler struct {
	deviceService *service.DeviceService
}

func NewDeviceHandler(deviceService *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService}
}

func (h *DeviceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Put("/", h.RegisterToken)
	r.Delete("/", h.RemoveToken)

	return r
}

type pushTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform,omitempty"`
}

// PUT /v1/push-tokens
func (h *DeviceHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	token, err := h.deviceService.RegisterToken(r.Context(), user.ID, req.Token, req.Platform)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to register push token")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// DELETE /v1/push-tokens
func (h *DeviceHandler) RemoveToken(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	if err := h.deviceService.RemoveToken(r.Context(), user.ID, req.Token); err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to remove push token")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
