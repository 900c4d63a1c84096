package callstate

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mediline/telehealth-server-go/internal/errors"
	"github.com/mediline/telehealth-server-go/internal/model"
)

func TestStoreGetOrCreate(t *testing.T) {
	t.Run("creates idle session on first call", func(t *testing.T) {
		store := NewStore()

		session, created := store.GetOrCreate("apt-1", "provider-1", "doctor-1", "room-1", 2)

		assert.True(t, created)
		assert.Equal(t, "apt-1", session.AppointmentID)
		assert.Equal(t, "provider-1", session.CallerID)
		assert.Equal(t, "doctor-1", session.CalleeID)
		assert.Equal(t, "room-1", session.RoomID)
		assert.Equal(t, model.CallStatusIdle, session.Status)
		assert.Equal(t, 0, session.RetryCount)
		assert.Equal(t, 2, session.MaxRetries)
	})

	t.Run("returns existing session on second call", func(t *testing.T) {
		store := NewStore()
		store.GetOrCreate("apt-1", "provider-1", "doctor-1", "room-1", 2)

		session, created := store.GetOrCreate("apt-1", "other", "party", "room-x", 5)

		assert.False(t, created)
		assert.Equal(t, "provider-1", session.CallerID)
		assert.Equal(t, "room-1", session.RoomID)
		assert.Equal(t, 1, store.Count())
	})

	t.Run("concurrent callers observe exactly one creation", func(t *testing.T) {
		store := NewStore()

		var createdCount int64
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, created := store.GetOrCreate("apt-1", "provider-1", "doctor-1", "room-1", 2)
				if created {
					atomic.AddInt64(&createdCount, 1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(1), createdCount)
		assert.Equal(t, 1, store.Count())
	})

	t.Run("returned session is a copy", func(t *testing.T) {
		store := NewStore()
		session, _ := store.GetOrCreate("apt-1", "provider-1", "doctor-1", "room-1", 2)

		session.Status = model.CallStatusFailed
		session.RetryCount = 99

		fresh := store.Get("apt-1")
		assert.Equal(t, model.CallStatusIdle, fresh.Status)
		assert.Equal(t, 0, fresh.RetryCount)
	})
}

func TestStoreTransition(t *testing.T) {
	t.Run("applies legal transition and mutation", func(t *testing.T) {
		store := NewStore()
		store.GetOrCreate("apt-1", "provider-1", "doctor-1", "room-1", 2)

		session, err := store.Transition("apt-1", model.EventStart, func(cs *model.CallSession) {
			cs.RetryCount = 0
		})

		require.NoError(t, err)
		assert.Equal(t, model.CallStatusRinging, session.Status)
	})

	t.Run("rejects illegal transition and leaves state unchanged", func(t *testing.T) {
		store := NewStore()
		store.GetOrCreate("apt-1", "provider-1", "doctor-1", "room-1", 2)

		mutated := false
		_, err := store.Transition("apt-1", model.EventJoin, func(cs *model.CallSession) {
			mutated = true
		})

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
		assert.False(t, mutated)
		assert.Equal(t, model.CallStatusIdle, store.Get("apt-1").Status)
	})

	t.Run("returns not found for unknown appointment", func(t *testing.T) {
		store := NewStore()

		_, err := store.Transition("missing", model.EventStart, nil)

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("walks full lifecycle", func(t *testing.T) {
		store := NewStore()
		store.GetOrCreate("apt-1", "provider-1", "doctor-1", "room-1", 2)

		for _, step := range []struct {
			event model.CallEvent
			want  model.CallStatus
		}{
			{model.EventStart, model.CallStatusRinging},
			{model.EventJoin, model.CallStatusActive},
			{model.EventEnd, model.CallStatusEnded},
			{model.EventRedial, model.CallStatusRinging},
			{model.EventEnd, model.CallStatusEnded},
			{model.EventFail, model.CallStatusFailed},
			{model.EventStart, model.CallStatusRinging},
		} {
			session, err := store.Transition("apt-1", step.event, nil)
			require.NoError(t, err, "event %s", step.event)
			assert.Equal(t, step.want, session.Status, "event %s", step.event)
		}
	})
}

func TestStoreGetByRoom(t *testing.T) {
	t.Run("resolves room to session", func(t *testing.T) {
		store := NewStore()
		store.GetOrCreate("apt-1", "provider-1", "doctor-1", "room-1", 2)

		session := store.GetByRoom("room-1")

		require.NotNil(t, session)
		assert.Equal(t, "apt-1", session.AppointmentID)
	})

	t.Run("returns nil for unknown room", func(t *testing.T) {
		store := NewStore()

		assert.Nil(t, store.GetByRoom("missing"))
	})
}

func TestStoreLockAppointment(t *testing.T) {
	t.Run("serializes holders per appointment", func(t *testing.T) {
		store := NewStore()

		unlock := store.LockAppointment("apt-1")

		acquired := make(chan struct{})
		go func() {
			u := store.LockAppointment("apt-1")
			close(acquired)
			u()
		}()

		select {
		case <-acquired:
			t.Fatal("second holder acquired the lock while held")
		case <-time.After(20 * time.Millisecond):
		}

		unlock()

		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("second holder never acquired the lock")
		}
	})

	t.Run("different appointments do not block each other", func(t *testing.T) {
		store := NewStore()

		unlock := store.LockAppointment("apt-1")
		defer unlock()

		done := make(chan struct{})
		go func() {
			u := store.LockAppointment("apt-2")
			u()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("unrelated appointment lock blocked")
		}
	})
}

func TestStoreDeleteFinishedBefore(t *testing.T) {
	t.Run("removes old ended and failed sessions only", func(t *testing.T) {
		store := NewStore()
		store.GetOrCreate("apt-ended", "a", "b", "room-ended", 2)
		store.GetOrCreate("apt-failed", "a", "b", "room-failed", 2)
		store.GetOrCreate("apt-live", "a", "b", "room-live", 2)

		_, err := store.Transition("apt-ended", model.EventCancel, nil)
		require.NoError(t, err)
		_, err = store.Transition("apt-failed", model.EventStart, nil)
		require.NoError(t, err)
		_, err = store.Transition("apt-failed", model.EventFail, nil)
		require.NoError(t, err)
		_, err = store.Transition("apt-live", model.EventStart, nil)
		require.NoError(t, err)

		removed := store.DeleteFinishedBefore(time.Now().Add(time.Minute))

		assert.Equal(t, 2, removed)
		assert.Equal(t, 1, store.Count())
		assert.Nil(t, store.Get("apt-ended"))
		assert.Nil(t, store.Get("apt-failed"))
		assert.NotNil(t, store.Get("apt-live"))
		assert.Nil(t, store.GetByRoom("room-ended"))
	})

	t.Run("keeps recently finished sessions", func(t *testing.T) {
		store := NewStore()
		store.GetOrCreate("apt-1", "a", "b", "room-1", 2)
		_, err := store.Transition("apt-1", model.EventCancel, nil)
		require.NoError(t, err)

		removed := store.DeleteFinishedBefore(time.Now().Add(-time.Hour))

		assert.Equal(t, 0, removed)
		assert.NotNil(t, store.Get("apt-1"))
	})
}
