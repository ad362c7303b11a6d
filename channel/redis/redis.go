// Package redis adapts Redis pub/sub into a channel: one Redis channel per
// direction, swapped between the two peers.
package redis

import (
	"sync"

	"github.com/mediocregopher/radix/v3"

	"github.com/peerlink/peerrpc/channel"
)

type Channel struct {
	pool   *radix.Pool
	pubsub radix.PubSubConn
	send   string
	recv   string

	mu     sync.Mutex
	closed bool
}

// New connects a pool for publishing and a persistent pub/sub connection
// for receiving.
func New(network, addr string, poolSize int, sendChannel, recvChannel string) (*Channel, error) {
	pool, err := radix.NewPool(network, addr, poolSize)
	if err != nil {
		return nil, err
	}
	pubsub, err := radix.PersistentPubSubWithOpts(network, addr)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Channel{pool: pool, pubsub: pubsub, send: sendChannel, recv: recvChannel}, nil
}

func (c *Channel) Subscribe(fn channel.Listener) (channel.CancelFunc, error) {
	msgCh := make(chan radix.PubSubMessage, 10000)
	if err := c.pubsub.Subscribe(msgCh, c.recv); err != nil {
		return nil, err
	}
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				fn(msg.Message)
			case <-stop:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = c.pubsub.Unsubscribe(msgCh, c.recv)
			close(stop)
		})
	}, nil
}

func (c *Channel) Post(payload []byte) error {
	return c.pool.Do(radix.Cmd(nil, "PUBLISH", c.send, string(payload)))
}

func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.pool.Close()
	_ = c.pubsub.Close()
}
