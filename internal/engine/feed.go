package engine

import "sync"

// Feed fans out per-tick snapshots to subscribers. Slow subscribers miss
// snapshots rather than stall the simulation.
type Feed struct {
	mu     sync.RWMutex
	latest *Snapshot
	subs   map[chan *Snapshot]struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[chan *Snapshot]struct{})}
}

// Publish records snap as the latest snapshot and offers it to every
// subscriber without blocking.
func (f *Feed) Publish(snap *Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = snap
	for ch := range f.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Latest returns the most recently published snapshot, or nil.
func (f *Feed) Latest() *Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.latest
}

// Subscribe returns a channel receiving future snapshots.
func (f *Feed) Subscribe(buffer int) chan *Snapshot {
	ch := make(chan *Snapshot, buffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (f *Feed) Unsubscribe(ch chan *Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(ch)
	}
}

// Subscribers returns the number of active subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
