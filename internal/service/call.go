package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mediline/telehealth-server-go/internal/audit"
	"github.com/mediline/telehealth-server-go/internal/callstate"
	apperrors "github.com/mediline/telehealth-server-go/internal/errors"
	"github.com/mediline/telehealth-server-go/internal/model"
	"github.com/mediline/telehealth-server-go/internal/push"
	"github.com/mediline/telehealth-server-go/internal/repository"
	"github.com/mediline/telehealth-server-go/internal/video"
)

// Notifier pushes an event to one user's live channel. Satisfied by
// *realtime.Registry.
type Notifier interface {
	Send(userID string, event any) bool
}

// CallConfig carries the redial policy constants. Delay and threshold are
// injectable so tests exercise the timer path at full speed.
type CallConfig struct {
	MaxRedials         int
	RedialDelay        time.Duration
	ShortCallThreshold time.Duration
}

type StartCallResult struct {
	RoomID    string           `json:"roomId"`
	RoomURL   string           `json:"roomUrl"`
	Status    model.CallStatus `json:"status"`
	Delivered bool             `json:"delivered"`
}

type EndCallResult struct {
	Status        model.CallStatus `json:"status"`
	EndedBy       string           `json:"endedBy"`
	RedialPending bool             `json:"redialPending"`
}

type CallStatusResult struct {
	Active        bool             `json:"active"`
	Status        model.CallStatus `json:"status"`
	CallerID      string           `json:"callerId"`
	CalleeID      string           `json:"calleeId"`
	RoomID        string           `json:"roomId"`
	RetryCount    int              `json:"retryCount"`
	MaxRetries    int              `json:"maxRetries"`
	RedialPending bool             `json:"redialPending"`
}

// CallService drives the call-session state machine: session creation, join,
// end and auto-redial scheduling. All state lives in the session store; the
// service coordinates the store, the connection registry and the push
// fallback. Notification delivery never decides the fate of a transition.
type CallService struct {
	appointmentRepo repository.AppointmentRepository
	store           *callstate.Store
	notifier        Notifier
	pushGateway     push.Gateway
	videoProvider   *video.Provider
	redial          *callstate.RedialScheduler
	cfg             CallConfig
}

func NewCallService(
	appointmentRepo repository.AppointmentRepository,
	store *callstate.Store,
	notifier Notifier,
	pushGateway push.Gateway,
	videoProvider *video.Provider,
	cfg CallConfig,
) *CallService {
	s := &CallService{
		appointmentRepo: appointmentRepo,
		store:           store,
		notifier:        notifier,
		pushGateway:     pushGateway,
		videoProvider:   videoProvider,
		cfg:             cfg,
	}
	s.redial = callstate.NewRedialScheduler(cfg.RedialDelay, s.onRedialTimer)
	return s
}

// Stop cancels all outstanding redial timers. Used on shutdown.
func (s *CallService) Stop() {
	s.redial.Stop()
}

// StartCall opens (or re-opens) the call for an appointment and invites the
// other participant. A manual start supersedes any pending redial and begins
// a fresh attempt with a zero retry counter.
func (s *CallService) StartCall(ctx context.Context, appointmentID, initiatorID string) (*StartCallResult, error) {
	unlock := s.store.LockAppointment(appointmentID)
	defer unlock()

	appointment, err := s.appointmentRepo.FindByID(ctx, appointmentID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if appointment == nil {
		return nil, apperrors.NotFound("Appointment")
	}

	peerID := appointment.ParticipantOf(initiatorID)
	if peerID == "" {
		return nil, apperrors.NotParticipant(initiatorID)
	}
	if !appointment.Callable() {
		return nil, apperrors.AppointmentClosed(appointmentID)
	}

	roomID := video.RoomID(appointmentID)
	s.store.GetOrCreate(appointmentID, initiatorID, peerID, roomID, s.cfg.MaxRedials)

	s.redial.Cancel(appointmentID)

	session, err := s.store.Transition(appointmentID, model.EventStart, func(cs *model.CallSession) {
		cs.CallerID = initiatorID
		cs.CalleeID = peerID
		cs.StartedAt = nil
		cs.EndedAt = nil
		cs.EndedBy = ""
		cs.RetryCount = 0
	})
	if err != nil {
		return nil, err
	}

	delivered := s.sendInvitation(ctx, session)

	log.Info().
		Str("appointmentId", appointmentID).
		Str("callerId", initiatorID).
		Str("calleeId", peerID).
		Str("roomId", roomID).
		Bool("delivered", delivered).
		Msg("call started")
	audit.Log(audit.Event{
		Type:          audit.EventCallStarted,
		UserID:        initiatorID,
		AppointmentID: appointmentID,
		RoomID:        roomID,
		Details:       map[string]interface{}{"delivered": delivered},
	})

	return &StartCallResult{
		RoomID:    session.RoomID,
		RoomURL:   s.videoProvider.RoomURL(session.RoomID),
		Status:    session.Status,
		Delivered: delivered,
	}, nil
}

// Join moves a ringing call to active when the invited participant arrives.
// The initiator entering their own room is a no-op.
func (s *CallService) Join(ctx context.Context, appointmentID, userID string) (*model.CallSession, error) {
	unlock := s.store.LockAppointment(appointmentID)
	defer unlock()

	session := s.store.Get(appointmentID)
	if session == nil {
		return nil, apperrors.NotFound("Call session")
	}
	if !session.IsParticipant(userID) {
		return nil, apperrors.NotParticipant(userID)
	}
	if userID == session.CallerID {
		return session, nil
	}

	session, err := s.store.Transition(appointmentID, model.EventJoin, func(cs *model.CallSession) {
		now := time.Now()
		cs.StartedAt = &now
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("appointmentId", appointmentID).
		Str("userId", userID).
		Msg("call active")
	audit.Log(audit.Event{
		Type:          audit.EventCallActive,
		UserID:        userID,
		AppointmentID: appointmentID,
		RoomID:        session.RoomID,
	})
	return session, nil
}

// EndCall terminates the current attempt and evaluates the redial policy: a
// call that never lasted past the short-call threshold is automatically
// re-dialled after a delay, bounded by the retry limit.
func (s *CallService) EndCall(ctx context.Context, appointmentID, enderID string) (*EndCallResult, error) {
	unlock := s.store.LockAppointment(appointmentID)
	defer unlock()

	session := s.store.Get(appointmentID)
	if session == nil {
		return nil, apperrors.NotFound("Call session")
	}
	if !session.IsParticipant(enderID) {
		return nil, apperrors.NotParticipant(enderID)
	}

	session, err := s.store.Transition(appointmentID, model.EventEnd, func(cs *model.CallSession) {
		now := time.Now()
		cs.EndedAt = &now
		cs.EndedBy = enderID
	})
	if err != nil {
		return nil, err
	}

	if peerID := session.PeerOf(enderID); peerID != "" {
		s.notifier.Send(peerID, model.NewCallEndedEvent(appointmentID, enderID))
	}

	s.evaluateRedial(session)

	log.Info().
		Str("appointmentId", appointmentID).
		Str("endedBy", enderID).
		Dur("duration", session.Duration()).
		Int("retryCount", session.RetryCount).
		Msg("call ended")
	audit.Log(audit.Event{
		Type:          audit.EventCallEnded,
		UserID:        enderID,
		AppointmentID: appointmentID,
		RoomID:        session.RoomID,
		Details: map[string]interface{}{
			"durationMs":    session.Duration().Milliseconds(),
			"redialPending": s.redial.Pending(appointmentID),
		},
	})

	return &EndCallResult{
		Status:        s.currentStatus(appointmentID, session.Status),
		EndedBy:       enderID,
		RedialPending: s.redial.Pending(appointmentID),
	}, nil
}

// CancelCall terminates the attempt without redial evaluation, for example
// when the appointment itself is cancelled. Terminal for this attempt.
func (s *CallService) CancelCall(ctx context.Context, appointmentID string) (*model.CallSession, error) {
	unlock := s.store.LockAppointment(appointmentID)
	defer unlock()

	s.redial.Cancel(appointmentID)

	session, err := s.store.Transition(appointmentID, model.EventCancel, func(cs *model.CallSession) {
		if cs.EndedAt == nil {
			now := time.Now()
			cs.EndedAt = &now
		}
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Send(session.CallerID, model.NewCallEndedEvent(appointmentID, ""))
	s.notifier.Send(session.CalleeID, model.NewCallEndedEvent(appointmentID, ""))

	log.Info().Str("appointmentId", appointmentID).Msg("call cancelled")
	audit.Log(audit.Event{
		Type:          audit.EventCallCancelled,
		AppointmentID: appointmentID,
		RoomID:        session.RoomID,
	})
	return session, nil
}

// GetStatus reports the session's current state, including whether a redial
// timer is outstanding.
func (s *CallService) GetStatus(ctx context.Context, appointmentID string) (*CallStatusResult, error) {
	session := s.store.Get(appointmentID)
	if session == nil {
		return nil, apperrors.NotFound("Call session")
	}

	return &CallStatusResult{
		Active:        session.Status == model.CallStatusActive,
		Status:        session.Status,
		CallerID:      session.CallerID,
		CalleeID:      session.CalleeID,
		RoomID:        session.RoomID,
		RetryCount:    session.RetryCount,
		MaxRetries:    session.MaxRetries,
		RedialPending: s.redial.Pending(appointmentID),
	}, nil
}

// RedialPending reports whether a redial timer is outstanding for the
// appointment.
func (s *CallService) RedialPending(appointmentID string) bool {
	return s.redial.Pending(appointmentID)
}

// evaluateRedial applies the redial policy to a just-ended session. Caller
// holds the appointment lock.
func (s *CallService) evaluateRedial(session *model.CallSession) {
	duration := session.Duration()
	if duration >= s.cfg.ShortCallThreshold {
		// The call is deemed to have succeeded even if later dropped;
		// redial only covers immediate failures.
		return
	}

	if session.RetryCount < session.MaxRetries {
		if s.redial.Schedule(session.AppointmentID) {
			log.Info().
				Str("appointmentId", session.AppointmentID).
				Int("retryCount", session.RetryCount).
				Msg("short call, redial scheduled")
		}
		return
	}

	if _, err := s.store.Transition(session.AppointmentID, model.EventFail, nil); err != nil {
		log.Error().Err(err).
			Str("appointmentId", session.AppointmentID).
			Msg("failed to mark call exhausted")
		return
	}
	log.Warn().
		Str("appointmentId", session.AppointmentID).
		Int("retryCount", session.RetryCount).
		Msg("redial attempts exhausted")
	audit.Log(audit.Event{
		Type:          audit.EventCallFailed,
		AppointmentID: session.AppointmentID,
		RoomID:        session.RoomID,
		Details:       map[string]interface{}{"retryCount": session.RetryCount},
	})
}

// onRedialTimer runs on the scheduler goroutine when a redial delay elapses.
func (s *CallService) onRedialTimer(appointmentID string) {
	unlock := s.store.LockAppointment(appointmentID)
	defer unlock()

	session, err := s.store.Transition(appointmentID, model.EventRedial, func(cs *model.CallSession) {
		cs.RetryCount++
		cs.StartedAt = nil
		cs.EndedAt = nil
		cs.EndedBy = ""
	})
	if err != nil {
		// The session moved on (manual restart or cancel) before the
		// timer fired; nothing to do.
		log.Debug().Err(err).
			Str("appointmentId", appointmentID).
			Msg("redial timer superseded")
		return
	}

	delivered := s.sendInvitation(context.Background(), session)

	log.Info().
		Str("appointmentId", appointmentID).
		Int("retryCount", session.RetryCount).
		Bool("delivered", delivered).
		Msg("redial fired")
	audit.Log(audit.Event{
		Type:          audit.EventCallRedial,
		AppointmentID: appointmentID,
		RoomID:        session.RoomID,
		Details: map[string]interface{}{
			"retryCount": session.RetryCount,
			"delivered":  delivered,
		},
	})
}

// sendInvitation pushes a call invitation to the callee, falling back to the
// push gateway when no live channel is connected. Delivery failures never
// fail the triggering operation.
func (s *CallService) sendInvitation(ctx context.Context, session *model.CallSession) bool {
	roomURL := s.videoProvider.RoomURL(session.RoomID)
	delivered := s.notifier.Send(session.CalleeID, model.NewCallInvitationEvent(session, roomURL))
	if delivered {
		return true
	}

	if s.pushGateway == nil {
		return false
	}

	err := s.pushGateway.Send(ctx, session.CalleeID,
		"Incoming video consultation",
		fmt.Sprintf("You are invited to join your consultation call (attempt %d)", session.RetryCount+1),
		map[string]string{
			"type":          model.EventTypeCallInvitation,
			"appointmentId": session.AppointmentID,
			"roomId":        session.RoomID,
			"roomUrl":       roomURL,
		})
	if err != nil {
		log.Warn().Err(err).
			Str("appointmentId", session.AppointmentID).
			Str("userId", session.CalleeID).
			Msg("push fallback failed")
	}
	return false
}

// currentStatus re-reads the status after redial evaluation may have moved
// the session to failed.
func (s *CallService) currentStatus(appointmentID string, fallback model.CallStatus) model.CallStatus {
	if session := s.store.Get(appointmentID); session != nil {
		return session.Status
	}
	return fallback
}
