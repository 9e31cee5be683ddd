package alerter

import (
	"sync"

	"github.com/fencewatch/fencewatch/internal/ring"
	"github.com/fencewatch/fencewatch/internal/types"
)

// DefaultFeedSize is how many crossings the live feed keeps
const DefaultFeedSize = 50

// Feed is the bounded, newest-first view of crossings the daemon has
// observed. Order is arrival order, never timestamp order, and repeated
// events are kept as-is.
type Feed struct {
	mu      sync.RWMutex
	events  *ring.Ring[types.AlertEvent]
	version uint64
}

// NewFeed creates a feed holding at most size events
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{events: ring.New[types.AlertEvent](size)}
}

// Record puts ev at the head of the feed, evicting the oldest entry when
// the feed is full. It returns the new length.
func (f *Feed) Record(ev types.AlertEvent) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events.Push(ev)
	f.version++
	return f.events.Len()
}

// Snapshot returns the whole feed newest-first. Each call allocates a new
// slice, so callers may keep or compare snapshots freely.
func (f *Feed) Snapshot() []types.AlertEvent {
	return f.Recent(0)
}

// Recent returns at most n events newest-first; n <= 0 returns all
func (f *Feed) Recent(n int) []types.AlertEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.events.Newest(n)
}

// Len returns the current number of events
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.events.Len()
}

// Cap returns the configured bound
func (f *Feed) Cap() int {
	return f.events.Cap()
}

// Version changes on every Record. Pollers use it to detect a new state
// without diffing snapshots.
func (f *Feed) Version() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}
