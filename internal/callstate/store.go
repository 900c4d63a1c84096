package callstate

import (
	"sync"
	"time"

	apperrors "github.com/mediline/telehealth-server-go/internal/errors"
	"github.com/mediline/telehealth-server-go/internal/model"
)

// Store is the authoritative in-memory record of call sessions, keyed by
// appointment id. At most one session exists per appointment at any time;
// sessions are superseded in place on redial, never hard-deleted by call
// operations (the retention job prunes finished ones).
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*model.CallSession
	rooms    map[string]string // roomID -> appointmentID

	locks sync.Map // appointmentID -> *sync.Mutex
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*model.CallSession),
		rooms:    make(map[string]string),
	}
}

// LockAppointment serializes call operations for one appointment without
// blocking operations on other appointments. The returned function releases
// the lock.
func (s *Store) LockAppointment(appointmentID string) func() {
	v, _ := s.locks.LoadOrStore(appointmentID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// GetOrCreate returns the session for the appointment, creating it with
// status idle when absent. Concurrent callers observe exactly one creation;
// the second return value reports whether this call created the record.
func (s *Store) GetOrCreate(appointmentID, callerID, calleeID, roomID string, maxRetries int) (*model.CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[appointmentID]; ok {
		return existing.Clone(), false
	}

	now := time.Now()
	session := &model.CallSession{
		AppointmentID: appointmentID,
		CallerID:      callerID,
		CalleeID:      calleeID,
		RoomID:        roomID,
		Status:        model.CallStatusIdle,
		RetryCount:    0,
		MaxRetries:    maxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.sessions[appointmentID] = session
	s.rooms[roomID] = appointmentID

	return session.Clone(), true
}

// Transition applies a state-machine event atomically. mutate, when not nil,
// adjusts session metadata (timestamps, retry counter) after the status
// check passed; the store's state is unchanged when the event is illegal.
func (s *Store) Transition(appointmentID string, event model.CallEvent, mutate func(*model.CallSession)) (*model.CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[appointmentID]
	if !ok {
		return nil, apperrors.NotFound("Call session")
	}

	next, legal := model.NextStatus(session.Status, event)
	if !legal {
		return nil, apperrors.InvalidTransition(string(session.Status), string(event))
	}

	session.Status = next
	if mutate != nil {
		mutate(session)
	}
	session.UpdatedAt = time.Now()

	return session.Clone(), nil
}

// Get returns the session for the appointment, or nil when absent.
func (s *Store) Get(appointmentID string) *model.CallSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[appointmentID]
	if !ok {
		return nil
	}
	return session.Clone()
}

// GetByRoom resolves a signaling room back to its session.
func (s *Store) GetByRoom(roomID string) *model.CallSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appointmentID, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	session, ok := s.sessions[appointmentID]
	if !ok {
		return nil
	}
	return session.Clone()
}

// Count returns the number of tracked sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// DeleteFinishedBefore removes ended and failed sessions last touched before
// cutoff. Returns how many were removed.
func (s *Store) DeleteFinishedBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.Status != model.CallStatusEnded && session.Status != model.CallStatusFailed {
			continue
		}
		if session.UpdatedAt.After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		delete(s.rooms, session.RoomID)
		s.locks.Delete(id)
		removed++
	}
	return removed
}
