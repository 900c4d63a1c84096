package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Sink is an exclusively owned outbound message channel for one user.
// *Conn is the production implementation; tests use in-memory sinks.
type Sink interface {
	Send(payload []byte) error
	Close()
}

// Registry maps a user identity to at most one live channel. All access to
// the map goes through these operations; there are no retries at this layer,
// a failed send is reported to the caller.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

func NewRegistry() *Registry {
	return &Registry{
		sinks: make(map[string]Sink),
	}
}

// Register stores the channel for userID, replacing and closing any prior
// channel for that user. Idempotent per call.
func (r *Registry) Register(userID string, sink Sink) {
	r.mu.Lock()
	previous := r.sinks[userID]
	r.sinks[userID] = sink
	total := len(r.sinks)
	r.mu.Unlock()

	if previous != nil && previous != sink {
		previous.Close()
		log.Info().Str("userId", userID).Msg("replaced existing connection")
	}

	log.Info().
		Str("userId", userID).
		Int("connected", total).
		Msg("connection registered")
}

// Unregister removes the entry for userID if present; no-op otherwise.
// The channel itself is not closed here, the owner tears it down.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	_, ok := r.sinks[userID]
	delete(r.sinks, userID)
	total := len(r.sinks)
	r.mu.Unlock()

	if ok {
		log.Info().
			Str("userId", userID).
			Int("connected", total).
			Msg("connection unregistered")
	}
}

// UnregisterSink removes the entry only if sink is still the one registered
// for userID, so a replaced connection's teardown cannot evict its successor.
func (r *Registry) UnregisterSink(userID string, sink Sink) {
	r.mu.Lock()
	current, ok := r.sinks[userID]
	if ok && current == sink {
		delete(r.sinks, userID)
	} else {
		ok = false
	}
	total := len(r.sinks)
	r.mu.Unlock()

	if ok {
		log.Info().
			Str("userId", userID).
			Int("connected", total).
			Msg("connection unregistered")
	}
}

// Send marshals event and enqueues it on the user's channel. It reports
// whether the event was handed to a live channel; the caller decides whether
// absence is an error (e.g. fall back to a push notification). A channel
// that breaks during send is implicitly unregistered.
func (r *Registry) Send(userID string, event any) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to marshal event")
		return false
	}

	r.mu.RLock()
	sink := r.sinks[userID]
	r.mu.RUnlock()

	if sink == nil {
		return false
	}

	if err := sink.Send(payload); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("send failed, dropping connection")
		r.UnregisterSink(userID, sink)
		sink.Close()
		return false
	}

	return true
}

// IsConnected reports whether userID currently has a live channel.
func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sinks[userID]
	return ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

// Close tears down every registered channel. Used on shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	sinks := r.sinks
	r.sinks = make(map[string]Sink)
	r.mu.Unlock()

	for _, sink := range sinks {
		sink.Close()
	}
}
