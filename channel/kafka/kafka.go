// Package kafka adapts a pair of Kafka topics into a channel: one topic
// per direction, swapped between the two peers. Topics are created on
// first use when the cluster allows it.
package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"github.com/peerlink/peerrpc/channel"
)

// groupJoinTimeout bounds how long Subscribe waits for the consumer group
// to assign partitions. Messages posted before the join completes would
// otherwise race the subscription.
const groupJoinTimeout = 30 * time.Second

type Channel struct {
	client   sarama.Client
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
	send     string
	recv     string

	mu      sync.Mutex
	ensured map[string]bool
}

// New connects to brokers. config needs Producer.Return.Successes set for
// the sync producer; groupID scopes the consumer offsets of this endpoint.
func New(brokers []string, config *sarama.Config, groupID, sendTopic, recvTopic string) (*Channel, error) {
	client, err := sarama.NewClient(brokers, config)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	group, err := sarama.NewConsumerGroupFromClient(groupID, client)
	if err != nil {
		producer.Close()
		client.Close()
		return nil, err
	}
	return &Channel{
		client:   client,
		producer: producer,
		group:    group,
		send:     sendTopic,
		recv:     recvTopic,
		ensured:  map[string]bool{},
	}, nil
}

func (c *Channel) ensureTopic(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ensured[topic] {
		return nil
	}
	admin, err := sarama.NewClusterAdminFromClient(c.client)
	if err != nil {
		return err
	}
	topics, err := admin.ListTopics()
	if err != nil {
		return err
	}
	if _, ok := topics[topic]; !ok {
		detail := &sarama.TopicDetail{NumPartitions: 1, ReplicationFactor: 1}
		if err := admin.CreateTopic(topic, detail, false); err != nil {
			return err
		}
	}
	c.ensured[topic] = true
	return nil
}

func (c *Channel) Subscribe(fn channel.Listener) (channel.CancelFunc, error) {
	if err := c.ensureTopic(c.recv); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &groupHandler{fn: fn, ready: make(chan struct{})}
	go func() {
		for {
			if err := c.group.Consume(ctx, []string{c.recv}, h); err != nil {
				if ctx.Err() != nil {
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	select {
	case <-h.ready:
	case <-time.After(groupJoinTimeout):
		cancel()
		return nil, errors.New("kafka: consumer group join timed out")
	}
	return channel.CancelFunc(cancel), nil
}

func (c *Channel) Post(payload []byte) error {
	if err := c.ensureTopic(c.send); err != nil {
		return err
	}
	_, _, err := c.producer.SendMessage(&sarama.ProducerMessage{
		Topic: c.send,
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func (c *Channel) Close() {
	_ = c.group.Close()
	_ = c.producer.Close()
	_ = c.client.Close()
}

type groupHandler struct {
	fn    channel.Listener
	ready chan struct{}
	once  sync.Once
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.once.Do(func() { close(h.ready) })
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.fn(msg.Value)
		sess.MarkMessage(msg, "")
	}
	return nil
}
