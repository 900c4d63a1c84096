package model

import (
	"encoding/json"

	apperrors "github.com/mediline/telehealth-server-go/internal/errors"
)

// Realtime event types pushed to connected users.
const (
	EventTypeConnected      = "connected"
	EventTypeCallInvitation = "call_invitation"
	EventTypeCallEnded      = "call_ended"
	EventTypeError          = "error"
)

// Signaling frame types exchanged between call participants. Offer, answer
// and candidate payloads are opaque to the server and relayed verbatim.
const (
	SignalTypeJoin      = "join"
	SignalTypeLeave     = "leave"
	SignalTypeOffer     = "offer"
	SignalTypeAnswer    = "answer"
	SignalTypeCandidate = "candidate"
)

type ConnectedEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type CallInvitationEvent struct {
	Type          string `json:"type"`
	AppointmentID string `json:"appointmentId"`
	RoomID        string `json:"roomId"`
	CallerID      string `json:"callerId"`
	RoomURL       string `json:"roomUrl"`
	RetryCount    int    `json:"retryCount"`
}

type CallEndedEvent struct {
	Type          string `json:"type"`
	AppointmentID string `json:"appointmentId"`
	EndedBy       string `json:"endedBy"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewConnectedEvent(userID string) ConnectedEvent {
	return ConnectedEvent{Type: EventTypeConnected, UserID: userID}
}

func NewCallInvitationEvent(s *CallSession, roomURL string) CallInvitationEvent {
	return CallInvitationEvent{
		Type:          EventTypeCallInvitation,
		AppointmentID: s.AppointmentID,
		RoomID:        s.RoomID,
		CallerID:      s.CallerID,
		RoomURL:       roomURL,
		RetryCount:    s.RetryCount,
	}
}

func NewCallEndedEvent(appointmentID, endedBy string) CallEndedEvent {
	return CallEndedEvent{
		Type:          EventTypeCallEnded,
		AppointmentID: appointmentID,
		EndedBy:       endedBy,
	}
}

func NewErrorEvent(code, message string) ErrorEvent {
	return ErrorEvent{Type: EventTypeError, Code: code, Message: message}
}

// SignalFrame is an inbound websocket frame from a call participant. The
// server enforces the tag and addressing fields only; Payload is opaque.
type SignalFrame struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate checks the required fields for the frame's variant.
func (f *SignalFrame) Validate() error {
	switch f.Type {
	case SignalTypeJoin, SignalTypeLeave:
		if f.RoomID == "" {
			return apperrors.MissingRequired("roomId")
		}
	case SignalTypeOffer, SignalTypeAnswer, SignalTypeCandidate:
		if f.RoomID == "" {
			return apperrors.MissingRequired("roomId")
		}
		if len(f.Payload) == 0 {
			return apperrors.MissingRequired("payload")
		}
	default:
		return apperrors.InvalidInput("type", "unknown frame type")
	}
	return nil
}

// SignalEvent is the relayed form of a SignalFrame delivered to the other
// room participants, stamped with the sender's identity.
type SignalEvent struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId"`
	From    string          `json:"from"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
