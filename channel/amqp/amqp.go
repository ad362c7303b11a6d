// Package amqp adapts RabbitMQ into a channel: one topic exchange per
// link, one routing key per direction, an exclusive queue per endpoint.
// The connection redials on broker loss and replays subscriptions.
package amqp

import (
	"context"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/peerlink/peerrpc/channel"
)

const redialInterval = 10 * time.Second

type Options struct {
	URL      string
	Exchange string
	SendKey  string
	RecvKey  string

	// Workers bounds concurrent listener invocations. Zero or one keeps
	// delivery sequential.
	Workers int
}

type Channel struct {
	opts Options

	mu        sync.Mutex
	conn      *amqp.Connection
	pub       *amqp.Channel
	reattach  []subscription
	closed    bool
	queueName string
}

// subscription keeps enough of a Subscribe call to replay it after a
// redial, plus its cancel signal so dead entries can be pruned.
type subscription struct {
	attach    func() error
	cancelled <-chan struct{}
}

func New(opts Options) (*Channel, error) {
	if opts.Exchange == "" {
		return nil, errors.New("amqp: exchange must be set")
	}
	c := &Channel{
		opts:      opts,
		queueName: "peerrpc." + opts.RecvKey + "." + ulid.Make().String(),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Channel) connect() error {
	conn, err := amqp.Dial(c.opts.URL)
	if err != nil {
		return errors.Wrap(err, "amqp: dial")
	}
	pub, err := conn.Channel()
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "amqp: open channel")
	}
	if err := pub.ExchangeDeclare(c.opts.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return errors.Wrap(err, "amqp: declare exchange")
	}

	c.mu.Lock()
	c.conn = conn
	c.pub = pub
	c.mu.Unlock()

	c.watchClose(conn)
	return nil
}

// watchClose redials until the broker is back, then replays every live
// subscription on the fresh connection.
func (c *Channel) watchClose(conn *amqp.Connection) {
	closeCh := make(chan *amqp.Error, 1)
	conn.NotifyClose(closeCh)
	go func() {
		if _, ok := <-closeCh; !ok {
			return
		}
		for {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			time.Sleep(redialInterval)
			if err := c.connect(); err != nil {
				continue
			}
			c.mu.Lock()
			live := c.reattach[:0]
			for _, sub := range c.reattach {
				select {
				case <-sub.cancelled:
				default:
					live = append(live, sub)
				}
			}
			c.reattach = live
			reattach := append([]subscription{}, live...)
			c.mu.Unlock()
			for _, sub := range reattach {
				_ = sub.attach()
			}
			return
		}
	}()
}

func (c *Channel) Subscribe(fn channel.Listener) (channel.CancelFunc, error) {
	cancelled := make(chan struct{})
	var once sync.Once

	attach := func() error {
		return c.consume(fn, cancelled)
	}
	if err := attach(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.reattach = append(c.reattach, subscription{attach: attach, cancelled: cancelled})
	c.mu.Unlock()

	return func() {
		once.Do(func() { close(cancelled) })
	}, nil
}

func (c *Channel) consume(fn channel.Listener, cancelled <-chan struct{}) error {
	select {
	case <-cancelled:
		return nil
	default:
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	chn, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "amqp: open consume channel")
	}
	queue, err := chn.QueueDeclare(c.queueName, false, true, true, false, nil)
	if err != nil {
		return errors.Wrap(err, "amqp: declare queue")
	}
	if err := chn.QueueBind(queue.Name, c.opts.RecvKey, c.opts.Exchange, false, nil); err != nil {
		return errors.Wrap(err, "amqp: bind queue")
	}
	msgs, err := chn.Consume(queue.Name, "", true, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "amqp: consume")
	}

	workers := c.opts.Workers
	go func() {
		if workers <= 1 {
			for {
				select {
				case msg, ok := <-msgs:
					if !ok {
						return
					}
					fn(msg.Body)
				case <-cancelled:
					_ = chn.Close()
					return
				}
			}
		}
		pool := pond.NewPool(workers, pond.WithQueueSize(workers))
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					pool.StopAndWait()
					return
				}
				body := msg.Body
				pool.Submit(func() { fn(body) })
			case <-cancelled:
				_ = chn.Close()
				pool.StopAndWait()
				return
			}
		}
	}()
	return nil
}

func (c *Channel) Post(payload []byte) error {
	c.mu.Lock()
	pub := c.pub
	c.mu.Unlock()
	return pub.PublishWithContext(context.Background(),
		c.opts.Exchange,
		c.opts.SendKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/octet-stream",
			Body:        payload,
		},
	)
}

func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	_ = conn.Close()
}
