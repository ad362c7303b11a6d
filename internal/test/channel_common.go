// Package tests holds conformance suites shared by every channel adapter's
// package test: one for the raw Adapter contract, one driving a full peer
// round trip over the adapter pair.
package tests

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peerlink/peerrpc"
	"github.com/peerlink/peerrpc/channel"
	"github.com/peerlink/peerrpc/internal/testlogger"
)

const waitFor = 5 * time.Second

// collector gathers payloads delivered to a listener.
type collector struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (c *collector) listen(payload []byte) {
	c.mu.Lock()
	c.payloads = append(c.payloads, append([]byte(nil), payload...))
	c.mu.Unlock()
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func (c *collector) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.payloads) == 0 {
		return nil
	}
	return c.payloads[len(c.payloads)-1]
}

// Channel_Conformance_Test checks the Adapter contract on a linked pair:
// delivery in both directions and cancel stopping intake.
func Channel_Conformance_Test(t *testing.T, a, b channel.Adapter) {
	onB := &collector{}
	cancelB, err := b.Subscribe(onB.listen)
	require.NoError(t, err)

	onA := &collector{}
	cancelA, err := a.Subscribe(onA.listen)
	require.NoError(t, err)
	defer cancelA()

	require.NoError(t, a.Post([]byte("ping")))
	require.Eventually(t, func() bool { return onB.count() == 1 }, waitFor, 10*time.Millisecond)
	require.Equal(t, "ping", string(onB.last()))

	require.NoError(t, b.Post([]byte("pong")))
	require.Eventually(t, func() bool { return onA.count() == 1 }, waitFor, 10*time.Millisecond)
	require.Equal(t, "pong", string(onA.last()))

	cancelB()
	cancelB() // double cancel must be harmless
	require.NoError(t, a.Post([]byte("late")))
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 1, onB.count())
}

// Peer_RoundTrip_Test drives a full call cycle over the pair: plain call,
// namespaced call, remote failure and a remoted callback.
func Peer_RoundTrip_Test(t *testing.T, a, b channel.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	log := testlogger.New(t)

	callee, err := peerrpc.New(peerrpc.Config{Adapter: b, Logger: &log, Methods: peerrpc.Methods{
		"add": func(args ...any) (any, error) {
			return args[0].(float64) + args[1].(float64), nil
		},
	}})
	require.NoError(t, err)
	defer callee.Destroy()

	_, err = callee.Register(peerrpc.Methods{
		"upper": func(args ...any) (any, error) {
			return strings.ToUpper(args[0].(string)), nil
		},
	}, "util")
	require.NoError(t, err)

	caller, err := peerrpc.New(peerrpc.Config{Adapter: a, Logger: &log})
	require.NoError(t, err)
	defer caller.Destroy()

	res, err := caller.Proxy().Call("add", 1, 2).Await(ctx)
	require.NoError(t, err)
	require.Equal(t, float64(3), res)

	res, err = caller.Use("util").Call("upper", "hi").Await(ctx)
	require.NoError(t, err)
	require.Equal(t, "HI", res)

	// callback argument: callee calls it once per element, in order
	_, err = callee.Register(peerrpc.Methods{
		"each": func(args ...any) (any, error) {
			emit := args[0].(peerrpc.Handler)
			for i := 1; i < len(args); i++ {
				if _, err := emit(args[i]); err != nil {
					return nil, err
				}
			}
			return len(args) - 1, nil
		},
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []any
	res, err = caller.Proxy().Call("each", peerrpc.Handler(func(args ...any) (any, error) {
		mu.Lock()
		seen = append(seen, args[0])
		mu.Unlock()
		return nil, nil
	}), "x", "y", "z").Await(ctx)
	require.NoError(t, err)
	require.Equal(t, float64(3), res)
	mu.Lock()
	require.Equal(t, []any{"x", "y", "z"}, seen)
	mu.Unlock()
}
