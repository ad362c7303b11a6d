package peerrpc

import (
	"context"
	"sync"
)

// Future is the completion handle of one outstanding call. It settles
// exactly once, when the matching call-result payload arrives (or when the
// peer is destroyed). The core imposes no timeout: a peer that never
// answers leaves the future pending, and bounding that wait is the
// caller's job via the ctx passed to Await.
type Future struct {
	done chan struct{}
	once sync.Once

	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) settle(value any, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future has settled.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the future settles or ctx expires. An expired ctx only
// abandons the wait; the call itself cannot be withdrawn and the future may
// still settle later.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result blocks until the future settles.
func (f *Future) Result() (any, error) {
	return f.Await(context.Background())
}
