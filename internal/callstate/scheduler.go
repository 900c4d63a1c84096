package callstate

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RedialScheduler owns the deferred redial timers, at most one pending per
// appointment. Timers are cancellable by appointment id; cancelling a timer
// that has already fired is a no-op.
type RedialScheduler struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[string]*time.Timer
	fire   func(appointmentID string)
}

// NewRedialScheduler builds a scheduler that invokes fire on its own
// goroutine after delay. The delay is injectable so tests run at full speed.
func NewRedialScheduler(delay time.Duration, fire func(appointmentID string)) *RedialScheduler {
	return &RedialScheduler{
		delay:  delay,
		timers: make(map[string]*time.Timer),
		fire:   fire,
	}
}

// Schedule arms a redial timer for the appointment. Scheduling is
// idempotent: a second call while a timer is pending leaves the existing
// timer in place and reports false.
func (r *RedialScheduler) Schedule(appointmentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, pending := r.timers[appointmentID]; pending {
		return false
	}

	r.timers[appointmentID] = time.AfterFunc(r.delay, func() {
		r.mu.Lock()
		_, live := r.timers[appointmentID]
		delete(r.timers, appointmentID)
		r.mu.Unlock()

		// A concurrent Cancel may have won the race after the timer fired.
		if !live {
			return
		}
		r.fire(appointmentID)
	})

	log.Debug().
		Str("appointmentId", appointmentID).
		Dur("delay", r.delay).
		Msg("redial scheduled")
	return true
}

// Cancel disarms the pending timer for the appointment, if any.
func (r *RedialScheduler) Cancel(appointmentID string) bool {
	r.mu.Lock()
	timer, ok := r.timers[appointmentID]
	delete(r.timers, appointmentID)
	r.mu.Unlock()

	if !ok {
		return false
	}
	timer.Stop()
	log.Debug().Str("appointmentId", appointmentID).Msg("redial cancelled")
	return true
}

// Pending reports whether a redial timer is outstanding for the appointment.
func (r *RedialScheduler) Pending(appointmentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[appointmentID]
	return ok
}

// Stop cancels every outstanding timer. Used on shutdown.
func (r *RedialScheduler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
}
