package realtime

import (
	"sync"
	"time"
)

const (
	throttleMaxEntries      = 10000
	throttleCleanupInterval = time.Minute
	throttleEntryTTL        = 5 * time.Minute
	throttleWindow          = time.Minute
)

type throttleEntry struct {
	timestamps []time.Time
	lastAccess time.Time
}

// FrameThrottle is a sliding-window limiter for inbound signaling frames,
// keyed by user id. It keeps a misbehaving client from flooding the relay.
type FrameThrottle struct {
	mu          sync.Mutex
	limit       int
	store       map[string]*throttleEntry
	lastCleanup time.Time
}

func NewFrameThrottle(limitPerMinute int) *FrameThrottle {
	return &FrameThrottle{
		limit:       limitPerMinute,
		store:       make(map[string]*throttleEntry),
		lastCleanup: time.Now(),
	}
}

// Allow records one frame from userID and reports whether it is within the
// per-minute budget.
func (t *FrameThrottle) Allow(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cleanup()

	now := time.Now()
	windowStart := now.Add(-throttleWindow)

	entry, exists := t.store[userID]
	if !exists {
		entry = &throttleEntry{}
		t.store[userID] = entry
	}
	entry.lastAccess = now

	filtered := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			filtered = append(filtered, ts)
		}
	}
	entry.timestamps = filtered

	if len(entry.timestamps) >= t.limit {
		return false
	}

	entry.timestamps = append(entry.timestamps, now)
	return true
}

func (t *FrameThrottle) cleanup() {
	now := time.Now()
	if now.Sub(t.lastCleanup) < throttleCleanupInterval {
		return
	}
	t.lastCleanup = now

	for key, entry := range t.store {
		if now.Sub(entry.lastAccess) > throttleEntryTTL {
			delete(t.store, key)
		}
	}

	if len(t.store) > throttleMaxEntries {
		drop := len(t.store) / 5
		for key := range t.store {
			delete(t.store, key)
			drop--
			if drop <= 0 {
				break
			}
		}
	}
}
