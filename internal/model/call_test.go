package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	legal := []struct {
		from  CallStatus
		event CallEvent
		want  CallStatus
	}{
		{CallStatusIdle, EventStart, CallStatusRinging},
		{CallStatusEnded, EventStart, CallStatusRinging},
		{CallStatusFailed, EventStart, CallStatusRinging},
		{CallStatusRinging, EventJoin, CallStatusActive},
		{CallStatusRinging, EventEnd, CallStatusEnded},
		{CallStatusActive, EventEnd, CallStatusEnded},
		{CallStatusEnded, EventRedial, CallStatusRinging},
		{CallStatusRinging, EventFail, CallStatusFailed},
		{CallStatusActive, EventFail, CallStatusFailed},
		{CallStatusEnded, EventFail, CallStatusFailed},
		{CallStatusIdle, EventCancel, CallStatusEnded},
		{CallStatusActive, EventCancel, CallStatusEnded},
	}
	for _, tc := range legal {
		t.Run(string(tc.from)+" "+string(tc.event), func(t *testing.T) {
			next, ok := NextStatus(tc.from, tc.event)
			assert.True(t, ok)
			assert.Equal(t, tc.want, next)
		})
	}

	illegal := []struct {
		from  CallStatus
		event CallEvent
	}{
		{CallStatusIdle, EventJoin},
		{CallStatusIdle, EventEnd},
		{CallStatusIdle, EventRedial},
		{CallStatusRinging, EventStart},
		{CallStatusActive, EventStart},
		{CallStatusActive, EventJoin},
		{CallStatusActive, EventRedial},
		{CallStatusEnded, EventJoin},
		{CallStatusEnded, EventEnd},
		{CallStatusFailed, EventRedial},
		{CallStatusFailed, EventEnd},
		{CallStatusFailed, EventFail},
	}
	for _, tc := range illegal {
		t.Run(string(tc.from)+" "+string(tc.event)+" rejected", func(t *testing.T) {
			next, ok := NextStatus(tc.from, tc.event)
			assert.False(t, ok)
			assert.Equal(t, tc.from, next)
		})
	}
}

func TestCallSessionDuration(t *testing.T) {
	t.Run("zero when never active", func(t *testing.T) {
		ended := time.Now()
		s := &CallSession{EndedAt: &ended}
		assert.Equal(t, time.Duration(0), s.Duration())
	})

	t.Run("zero while still active", func(t *testing.T) {
		started := time.Now()
		s := &CallSession{StartedAt: &started}
		assert.Equal(t, time.Duration(0), s.Duration())
	})

	t.Run("ended minus started", func(t *testing.T) {
		started := time.Now()
		ended := started.Add(42 * time.Second)
		s := &CallSession{StartedAt: &started, EndedAt: &ended}
		assert.Equal(t, 42*time.Second, s.Duration())
	})
}

func TestCallSessionParticipants(t *testing.T) {
	session := &CallSession{CallerID: "provider-1", CalleeID: "doctor-1"}

	t.Run("PeerOf returns the counterpart", func(t *testing.T) {
		assert.Equal(t, "doctor-1", session.PeerOf("provider-1"))
		assert.Equal(t, "provider-1", session.PeerOf("doctor-1"))
		assert.Empty(t, session.PeerOf("stranger"))
	})

	t.Run("IsParticipant covers both parties", func(t *testing.T) {
		assert.True(t, session.IsParticipant("provider-1"))
		assert.True(t, session.IsParticipant("doctor-1"))
		assert.False(t, session.IsParticipant("stranger"))
	})
}

func TestCallSessionClone(t *testing.T) {
	t.Run("copies timestamps independently", func(t *testing.T) {
		started := time.Now()
		original := &CallSession{AppointmentID: "apt-1", StartedAt: &started}

		clone := original.Clone()
		*clone.StartedAt = clone.StartedAt.Add(time.Hour)
		clone.Status = CallStatusFailed

		assert.Equal(t, started, *original.StartedAt)
		assert.NotEqual(t, original.Status, clone.Status)
	})
}
