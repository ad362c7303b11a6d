// Package nats adapts a pair of NATS subjects into a channel. Each link
// needs two subjects, one per direction; the peers swap them.
package nats

import (
	"github.com/nats-io/nats.go"

	"github.com/peerlink/peerrpc/channel"
)

type Channel struct {
	conn *nats.Conn
	send string
	recv string
}

// New connects to addr and speaks on sendSubject, listening on recvSubject.
func New(addr, sendSubject, recvSubject string) (*Channel, error) {
	conn, err := nats.Connect(addr)
	if err != nil {
		return nil, err
	}
	return &Channel{conn: conn, send: sendSubject, recv: recvSubject}, nil
}

// Wrap reuses an existing connection, e.g. to run several links over one
// NATS client.
func Wrap(conn *nats.Conn, sendSubject, recvSubject string) *Channel {
	return &Channel{conn: conn, send: sendSubject, recv: recvSubject}
}

func (c *Channel) Subscribe(fn channel.Listener) (channel.CancelFunc, error) {
	sub, err := c.conn.Subscribe(c.recv, func(msg *nats.Msg) {
		fn(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	if err := c.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	return func() {
		_ = sub.Unsubscribe()
	}, nil
}

func (c *Channel) Post(payload []byte) error {
	return c.conn.Publish(c.send, payload)
}

func (c *Channel) Close() {
	c.conn.Close()
}
