package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/mediline/telehealth-server-go/internal/errors"
	"github.com/mediline/telehealth-server-go/internal/middleware"
	"github.com/mediline/telehealth-server-go/internal/service"
)

type CallHandler struct {
	callService *service.CallService
}

func NewCallHandler(callService *service.CallService) *CallHandler {
	return &CallHandler{callService: callService}
}

func (h *CallHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/{appointmentID}/call/start", h.StartCall)
	r.Post("/{appointmentID}/call/end", h.EndCall)
	r.Post("/{appointmentID}/call/cancel", h.CancelCall)
	r.Get("/{appointmentID}/call/status", h.GetCallStatus)

	return r
}

// POST /v1/appointments/{appointmentID}/call/start
func (h *CallHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	appointmentID := chi.URLParam(r, "appointmentID")
	if appointmentID == "" {
		writeError(w, apperrors.MissingRequired("appointmentID"))
		return
	}

	result, err := h.callService.StartCall(r.Context(), appointmentID, user.ID)
	if err != nil {
		logCallError(err, "start call", appointmentID)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/appointments/{appointmentID}/call/end
func (h *CallHandler) EndCall(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	appointmentID := chi.URLParam(r, "appointmentID")
	if appointmentID == "" {
		writeError(w, apperrors.MissingRequired("appointmentID"))
		return
	}

	result, err := h.callService.EndCall(r.Context(), appointmentID, user.ID)
	if err != nil {
		logCallError(err, "end call", appointmentID)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/appointments/{appointmentID}/call/cancel
func (h *CallHandler) CancelCall(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	appointmentID := chi.URLParam(r, "appointmentID")
	if appointmentID == "" {
		writeError(w, apperrors.MissingRequired("appointmentID"))
		return
	}

	status, err := h.callService.GetStatus(r.Context(), appointmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if user.ID != status.CallerID && user.ID != status.CalleeID && user.Role != "admin" {
		writeError(w, apperrors.NotParticipant(user.ID))
		return
	}

	session, err := h.callService.CancelCall(r.Context(), appointmentID)
	if err != nil {
		logCallError(err, "cancel call", appointmentID)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": session.Status,
	})
}

// GET /v1/appointments/{appointmentID}/call/status
func (h *CallHandler) GetCallStatus(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "appointmentID")
	if appointmentID == "" {
		writeError(w, apperrors.MissingRequired("appointmentID"))
		return
	}

	result, err := h.callService.GetStatus(r.Context(), appointmentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func logCallError(err error, op, appointmentID string) {
	code := apperrors.GetCode(err)
	if code == apperrors.ErrCodeInternal || code == apperrors.ErrCodeDatabase {
		log.Error().Err(err).Str("appointmentId", appointmentID).Msgf("failed to %s", op)
		return
	}
	log.Debug().Err(err).Str("appointmentId", appointmentID).Msgf("%s rejected", op)
}
