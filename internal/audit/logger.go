package audit

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventCallStarted     EventType = "call_started"
	EventCallActive      EventType = "call_active"
	EventCallEnded       EventType = "call_ended"
	EventCallCancelled   EventType = "call_cancelled"
	EventCallRedial      EventType = "call_redial"
	EventCallFailed      EventType = "call_failed"
	EventAuthFailure     EventType = "auth_failure"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
)

// Event is one audit record of a call-lifecycle or security action. Audit
// lines carry a fixed marker field so they can be filtered out of the
// operational log stream.
type Event struct {
	Type          EventType
	UserID        string
	AppointmentID string
	RoomID        string
	Details       map[string]interface{}
}

func Log(event Event) {
	logger := log.With().
		Str("audit", "calls").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserID != "" {
		logger = logger.With().Str("user_id", event.UserID).Logger()
	}
	if event.AppointmentID != "" {
		logger = logger.With().Str("appointment_id", event.AppointmentID).Logger()
	}
	if event.RoomID != "" {
		logger = logger.With().Str("room_id", event.RoomID).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
