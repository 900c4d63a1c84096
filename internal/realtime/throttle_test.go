package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameThrottle(t *testing.T) {
	t.Run("allows frames under limit", func(t *testing.T) {
		throttle := NewFrameThrottle(5)

		for i := 0; i < 5; i++ {
			assert.True(t, throttle.Allow("user-1"))
		}
	})

	t.Run("blocks frames over limit", func(t *testing.T) {
		throttle := NewFrameThrottle(3)

		for i := 0; i < 3; i++ {
			throttle.Allow("user-1")
		}

		assert.False(t, throttle.Allow("user-1"))
		assert.False(t, throttle.Allow("user-1"))
	})

	t.Run("tracks users separately", func(t *testing.T) {
		throttle := NewFrameThrottle(2)

		throttle.Allow("user-a")
		throttle.Allow("user-a")

		assert.False(t, throttle.Allow("user-a"))
		assert.True(t, throttle.Allow("user-b"))
	})
}
