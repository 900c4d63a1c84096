package realtime

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu       sync.Mutex
	payloads [][]byte
	sendErr  error
	closed   int
}

func (s *fakeSink) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *fakeSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *fakeSink) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSink) received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func TestRegistrySend(t *testing.T) {
	t.Run("delivers to registered user", func(t *testing.T) {
		registry := NewRegistry()
		sink := &fakeSink{}
		registry.Register("user-1", sink)

		delivered := registry.Send("user-1", map[string]string{"type": "test"})

		assert.True(t, delivered)
		require.Equal(t, 1, sink.received())
		assert.JSONEq(t, `{"type":"test"}`, string(sink.payloads[0]))
	})

	t.Run("reports false for disconnected user", func(t *testing.T) {
		registry := NewRegistry()

		assert.False(t, registry.Send("nobody", "hello"))
	})

	t.Run("drops broken channel on send failure", func(t *testing.T) {
		registry := NewRegistry()
		sink := &fakeSink{sendErr: errors.New("write on closed conn")}
		registry.Register("user-1", sink)

		delivered := registry.Send("user-1", "hello")

		assert.False(t, delivered)
		assert.False(t, registry.IsConnected("user-1"))
		assert.Equal(t, 1, sink.closeCount())
	})

	t.Run("reports false for unmarshalable event", func(t *testing.T) {
		registry := NewRegistry()
		sink := &fakeSink{}
		registry.Register("user-1", sink)

		assert.False(t, registry.Send("user-1", func() {}))
		assert.Equal(t, 0, sink.received())
	})
}

func TestRegistryRegister(t *testing.T) {
	t.Run("replacement closes the prior channel exactly once", func(t *testing.T) {
		registry := NewRegistry()
		first := &fakeSink{}
		second := &fakeSink{}

		registry.Register("user-1", first)
		registry.Register("user-1", second)

		assert.Equal(t, 1, first.closeCount())
		assert.Equal(t, 0, second.closeCount())
		assert.Equal(t, 1, registry.Count())

		registry.Send("user-1", "hello")
		assert.Equal(t, 0, first.received())
		assert.Equal(t, 1, second.received())
	})

	t.Run("re-registering the same channel does not close it", func(t *testing.T) {
		registry := NewRegistry()
		sink := &fakeSink{}

		registry.Register("user-1", sink)
		registry.Register("user-1", sink)

		assert.Equal(t, 0, sink.closeCount())
	})

	t.Run("tracks users independently", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("user-1", &fakeSink{})
		registry.Register("user-2", &fakeSink{})

		assert.Equal(t, 2, registry.Count())
		assert.True(t, registry.IsConnected("user-1"))
		assert.True(t, registry.IsConnected("user-2"))
	})
}

func TestRegistryUnregister(t *testing.T) {
	t.Run("removes the user", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("user-1", &fakeSink{})

		registry.Unregister("user-1")

		assert.False(t, registry.IsConnected("user-1"))
		assert.Equal(t, 0, registry.Count())
	})

	t.Run("unknown user is a no-op", func(t *testing.T) {
		registry := NewRegistry()
		registry.Unregister("nobody")
		assert.Equal(t, 0, registry.Count())
	})

	t.Run("replaced channel cannot evict its successor", func(t *testing.T) {
		registry := NewRegistry()
		first := &fakeSink{}
		second := &fakeSink{}
		registry.Register("user-1", first)
		registry.Register("user-1", second)

		registry.UnregisterSink("user-1", first)

		assert.True(t, registry.IsConnected("user-1"))

		registry.UnregisterSink("user-1", second)
		assert.False(t, registry.IsConnected("user-1"))
	})
}

func TestRegistryClose(t *testing.T) {
	t.Run("closes every channel", func(t *testing.T) {
		registry := NewRegistry()
		first := &fakeSink{}
		second := &fakeSink{}
		registry.Register("user-1", first)
		registry.Register("user-2", second)

		registry.Close()

		assert.Equal(t, 0, registry.Count())
		assert.Equal(t, 1, first.closeCount())
		assert.Equal(t, 1, second.closeCount())
	})
}
