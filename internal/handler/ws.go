package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mediline/telehealth-server-go/internal/audit"
	"github.com/mediline/telehealth-server-go/internal/callstate"
	"github.com/mediline/telehealth-server-go/internal/config"
	apperrors "github.com/mediline/telehealth-server-go/internal/errors"
	"github.com/mediline/telehealth-server-go/internal/middleware"
	"github.com/mediline/telehealth-server-go/internal/model"
	"github.com/mediline/telehealth-server-go/internal/realtime"
	"github.com/mediline/telehealth-server-go/internal/service"
	"github.com/mediline/telehealth-server-go/internal/signaling"
	"github.com/mediline/telehealth-server-go/internal/util"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Clients authenticate with a signed token; origin is not part of
		// the trust model.
		return true
	},
}

// WSHandler owns the websocket endpoint: it registers the user's channel in
// the connection registry, then reads signaling frames until disconnect.
type WSHandler struct {
	registry    *realtime.Registry
	relay       *signaling.Relay
	callService *service.CallService
	store       *callstate.Store
	throttle    *realtime.FrameThrottle
}

func NewWSHandler(
	registry *realtime.Registry,
	relay *signaling.Relay,
	callService *service.CallService,
	store *callstate.Store,
) *WSHandler {
	return &WSHandler{
		registry:    registry,
		relay:       relay,
		callService: callService,
		store:       store,
		throttle:    realtime.NewFrameThrottle(config.WSFrameLimitPerMin),
	}
}

// GET /v1/ws
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Missing authentication token"))
		return
	}

	ws, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response; just log and return.
		log.Debug().Err(err).Str("userId", user.ID).Msg("websocket upgrade failed")
		return
	}

	conn := realtime.NewConn(user.ID, ws)
	conn.Start()
	h.registry.Register(user.ID, conn)
	defer func() {
		h.registry.UnregisterSink(user.ID, conn)
		h.relay.LeaveAll(user.ID)
		conn.Close()
	}()

	h.registry.Send(user.ID, model.NewConnectedEvent(user.ID))

	ws.SetReadLimit(config.WSMaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(config.WSReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(config.WSReadTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return
			}
			log.Debug().Err(err).Str("userId", user.ID).Msg("websocket read failed")
			return
		}

		if !h.throttle.Allow(user.ID) {
			audit.Log(audit.Event{Type: audit.EventRateLimitExceed, UserID: user.ID})
			h.replyError(user.ID, apperrors.RateLimitExceeded())
			continue
		}

		var frame model.SignalFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.replyError(user.ID, apperrors.InvalidInput("frame", "malformed JSON"))
			continue
		}
		if err := frame.Validate(); err != nil {
			h.replyError(user.ID, err)
			continue
		}

		h.dispatch(user.ID, frame)
	}
}

func (h *WSHandler) dispatch(userID string, frame model.SignalFrame) {
	switch frame.Type {
	case model.SignalTypeJoin:
		h.handleJoin(userID, frame.RoomID)
	case model.SignalTypeLeave:
		h.relay.Leave(frame.RoomID, userID)
	default:
		h.relay.Relay(frame.RoomID, userID, frame)
	}
}

// handleJoin admits the user into the signaling room and drives the call
// lifecycle: the invited participant's join is what moves the call from
// ringing to active.
func (h *WSHandler) handleJoin(userID, roomID string) {
	if !util.IsValidUUID(roomID) {
		h.replyError(userID, apperrors.InvalidInput("roomId", "not a valid room id"))
		return
	}

	session := h.store.GetByRoom(roomID)
	if session == nil {
		h.replyError(userID, apperrors.NotFound("Call session"))
		return
	}
	if !session.IsParticipant(userID) {
		h.replyError(userID, apperrors.NotParticipant(userID))
		return
	}

	if !h.relay.Join(roomID, userID) {
		h.replyError(userID, apperrors.New(apperrors.ErrCodeConflict, "Room is full"))
		return
	}

	if _, err := h.callService.Join(context.Background(), session.AppointmentID, userID); err != nil {
		// Re-joining an already active or ended call is fine for the
		// signaling layer; the lifecycle simply does not move.
		log.Debug().Err(err).
			Str("appointmentId", session.AppointmentID).
			Str("userId", userID).
			Msg("join did not change call state")
	}
}

func (h *WSHandler) replyError(userID string, err error) {
	code := string(apperrors.GetCode(err))
	message := "Internal error"
	if appErr, ok := apperrors.AsAppError(err); ok {
		message = appErr.Message
	}
	h.registry.Send(userID, model.NewErrorEvent(code, message))
}
