package peerrpc

import (
	"sync"
)

// pendingTable correlates call tokens with their futures. An entry is
// created before the call payload is posted (a fast responder must not
// race the insert) and consumed exactly once by the matching result.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*Future
	closed  bool
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: map[string]*Future{}}
}

// add creates a future for token. After close it refuses the insert and
// returns ok=false, so a call racing Destroy cannot park a future that
// the drain already missed.
func (t *pendingTable) add(token string) (*Future, bool) {
	f := newFuture()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return f, false
	}
	t.entries[token] = f
	return f, true
}

// take removes and returns the entry for token. A second take of the same
// token misses, which is what makes duplicate result delivery a no-op.
func (t *pendingTable) take(token string) (*Future, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.entries[token]
	if ok {
		delete(t.entries, token)
	}
	return f, ok
}

// close empties the table, marks it closed and returns everything that
// was still pending. Subsequent adds are refused.
func (t *pendingTable) close() []*Future {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	out := make([]*Future, 0, len(t.entries))
	for _, f := range t.entries {
		out = append(out, f)
	}
	t.entries = map[string]*Future{}
	return out
}
