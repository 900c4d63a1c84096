package model

import "time"

type CallStatus string

const (
	CallStatusIdle    CallStatus = "idle"
	CallStatusRinging CallStatus = "ringing"
	CallStatusActive  CallStatus = "active"
	CallStatusEnded   CallStatus = "ended"
	CallStatusFailed  CallStatus = "failed"
)

// CallEvent is a state-machine event applied to a call session.
type CallEvent string

const (
	// EventStart is a manual call initiation. Legal from idle, ended and
	// failed; restarting a failed call begins a fresh attempt.
	EventStart CallEvent = "start"
	// EventJoin is the second participant entering the call.
	EventJoin CallEvent = "join"
	// EventEnd is either participant hanging up.
	EventEnd CallEvent = "end"
	// EventCancel terminates the attempt without redial evaluation.
	EventCancel CallEvent = "cancel"
	// EventRedial is the redial timer firing.
	EventRedial CallEvent = "redial"
	// EventFail marks the session irrecoverable (redials exhausted).
	EventFail CallEvent = "fail"
)

// CallSession tracks the lifecycle of one video-consultation call attempt
// for an appointment. RoomID is stable across redials so reconnecting
// participants land in the same signaling room.
type CallSession struct {
	AppointmentID string     `json:"appointmentId"`
	CallerID      string     `json:"callerId"`
	CalleeID      string     `json:"calleeId"`
	RoomID        string     `json:"roomId"`
	Status        CallStatus `json:"status"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
	EndedBy       string     `json:"endedBy,omitempty"`
	RetryCount    int        `json:"retryCount"`
	MaxRetries    int        `json:"maxRetries"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Duration reports how long the call was active, zero if it never was.
func (s *CallSession) Duration() time.Duration {
	if s.StartedAt == nil || s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(*s.StartedAt)
}

// PeerOf returns the other participant's id, or empty when userID is not a
// participant.
func (s *CallSession) PeerOf(userID string) string {
	switch userID {
	case s.CallerID:
		return s.CalleeID
	case s.CalleeID:
		return s.CallerID
	}
	return ""
}

// IsParticipant reports whether userID is one of the two call parties.
func (s *CallSession) IsParticipant(userID string) bool {
	return userID == s.CallerID || userID == s.CalleeID
}

// Clone returns a copy safe to hand out without exposing store internals.
func (s *CallSession) Clone() *CallSession {
	dup := *s
	if s.StartedAt != nil {
		t := *s.StartedAt
		dup.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		dup.EndedAt = &t
	}
	return &dup
}

// NextStatus returns the status a session moves to when event is applied
// from the given status, and whether that transition is legal.
func NextStatus(from CallStatus, event CallEvent) (CallStatus, bool) {
	switch event {
	case EventStart:
		if from == CallStatusIdle || from == CallStatusEnded || from == CallStatusFailed {
			return CallStatusRinging, true
		}
	case EventJoin:
		if from == CallStatusRinging {
			return CallStatusActive, true
		}
	case EventEnd:
		if from == CallStatusRinging || from == CallStatusActive {
			return CallStatusEnded, true
		}
	case EventCancel:
		return CallStatusEnded, true
	case EventRedial:
		if from == CallStatusEnded {
			return CallStatusRinging, true
		}
	case EventFail:
		if from == CallStatusRinging || from == CallStatusActive || from == CallStatusEnded {
			return CallStatusFailed, true
		}
	}
	return from, false
}
