package callstate

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedialScheduler(t *testing.T) {
	t.Run("fires after delay", func(t *testing.T) {
		fired := make(chan string, 1)
		sched := NewRedialScheduler(10*time.Millisecond, func(id string) {
			fired <- id
		})
		defer sched.Stop()

		assert.True(t, sched.Schedule("apt-1"))
		assert.True(t, sched.Pending("apt-1"))

		select {
		case id := <-fired:
			assert.Equal(t, "apt-1", id)
		case <-time.After(time.Second):
			t.Fatal("timer never fired")
		}
		assert.False(t, sched.Pending("apt-1"))
	})

	t.Run("schedule is idempotent while pending", func(t *testing.T) {
		var count int64
		sched := NewRedialScheduler(10*time.Millisecond, func(string) {
			atomic.AddInt64(&count, 1)
		})
		defer sched.Stop()

		assert.True(t, sched.Schedule("apt-1"))
		assert.False(t, sched.Schedule("apt-1"))
		assert.False(t, sched.Schedule("apt-1"))

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int64(1), atomic.LoadInt64(&count))
	})

	t.Run("cancel disarms pending timer", func(t *testing.T) {
		var count int64
		sched := NewRedialScheduler(10*time.Millisecond, func(string) {
			atomic.AddInt64(&count, 1)
		})
		defer sched.Stop()

		sched.Schedule("apt-1")
		assert.True(t, sched.Cancel("apt-1"))
		assert.False(t, sched.Pending("apt-1"))

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int64(0), atomic.LoadInt64(&count))
	})

	t.Run("cancel without pending timer reports false", func(t *testing.T) {
		sched := NewRedialScheduler(10*time.Millisecond, func(string) {})
		defer sched.Stop()

		assert.False(t, sched.Cancel("apt-1"))
	})

	t.Run("schedule again after fire", func(t *testing.T) {
		fired := make(chan struct{}, 2)
		sched := NewRedialScheduler(10*time.Millisecond, func(string) {
			fired <- struct{}{}
		})
		defer sched.Stop()

		assert.True(t, sched.Schedule("apt-1"))
		<-fired
		assert.True(t, sched.Schedule("apt-1"))
		<-fired
	})

	t.Run("tracks appointments independently", func(t *testing.T) {
		sched := NewRedialScheduler(time.Hour, func(string) {})
		defer sched.Stop()

		sched.Schedule("apt-1")
		sched.Schedule("apt-2")
		sched.Cancel("apt-1")

		assert.False(t, sched.Pending("apt-1"))
		assert.True(t, sched.Pending("apt-2"))
	})

	t.Run("stop cancels everything", func(t *testing.T) {
		var count int64
		sched := NewRedialScheduler(10*time.Millisecond, func(string) {
			atomic.AddInt64(&count, 1)
		})

		sched.Schedule("apt-1")
		sched.Schedule("apt-2")
		sched.Stop()

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int64(0), atomic.LoadInt64(&count))
		assert.False(t, sched.Pending("apt-1"))
	})
}
