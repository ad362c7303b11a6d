// Package memory provides an in-process adapter pair for tests and
// examples. Delivery is asynchronous through a bounded queue, so ordering
// and interleaving behave like a real channel rather than a function call.
package memory

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/peerlink/peerrpc/channel"
)

const queueSize = 10000

// Endpoint is one side of a linked pair. It satisfies channel.Adapter.
type Endpoint struct {
	id   uuid.UUID
	peer *Endpoint

	mu        sync.Mutex
	listeners map[int]channel.Listener
	nextID    int
	closed    bool

	queue chan []byte
	done  chan struct{}
}

// NewPair returns two linked endpoints: payloads posted on one arrive at
// the other's listeners.
func NewPair() (*Endpoint, *Endpoint) {
	a := newEndpoint()
	b := newEndpoint()
	a.peer = b
	b.peer = a
	go a.deliverLoop()
	go b.deliverLoop()
	return a, b
}

func newEndpoint() *Endpoint {
	return &Endpoint{
		id:        uuid.New(),
		listeners: map[int]channel.Listener{},
		queue:     make(chan []byte, queueSize),
		done:      make(chan struct{}),
	}
}

// Address identifies the endpoint, mostly for logs.
func (e *Endpoint) Address() string {
	return fmt.Sprintf("memory://%s", e.id.String())
}

func (e *Endpoint) Subscribe(fn channel.Listener) (channel.CancelFunc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, status.New(codes.Unavailable, "endpoint closed").Err()
	}
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}, nil
}

// Post queues the payload for the linked endpoint. A full queue drops the
// payload and reports ResourceExhausted instead of blocking the caller.
func (e *Endpoint) Post(payload []byte) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return status.New(codes.Unavailable, "endpoint closed").Err()
	}
	select {
	case e.peer.queue <- payload:
		return nil
	default:
		return status.New(codes.ResourceExhausted, "queue is full").Err()
	}
}

// Close stops delivery on this endpoint. Both sides of a pair should be
// closed independently.
func (e *Endpoint) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	close(e.done)
}

func (e *Endpoint) deliverLoop() {
	for {
		select {
		case payload := <-e.queue:
			e.mu.Lock()
			fns := make([]channel.Listener, 0, len(e.listeners))
			for _, fn := range e.listeners {
				fns = append(fns, fn)
			}
			e.mu.Unlock()
			for _, fn := range fns {
				fn(payload)
			}
		case <-e.done:
			return
		}
	}
}
