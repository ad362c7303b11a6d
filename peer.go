// Package peerrpc lets two sides of an opaque, asynchronous message
// channel invoke each other's functions, including passing live callback
// functions across the boundary.
//
// Each side constructs a Peer over a channel.Adapter. A call is sent as a
// "call" payload carrying a fresh token; the other side runs the matching
// registered handler and answers with a "call-result" payload echoing the
// token, which settles the caller's Future. Function-typed arguments are
// remoted: they travel as callback references and invocations of them on
// the far side become calls back to the owner.
//
// Callback registrations persist for the life of the peer: a workload
// passing fresh callbacks on every call grows the method table without
// bound. The protocol has no removal message, so cleanup would have to be
// an out-of-band agreement between both sides.
package peerrpc

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/peerlink/peerrpc/channel"
	"github.com/peerlink/peerrpc/codec"
)

// Config carries the collaborators of one Peer. Only Adapter is required.
type Config struct {
	Adapter channel.Adapter

	// Codec encodes payloads for the adapter. Default: codec.JSON().
	Codec codec.Codec

	// Logger receives drop and transport diagnostics. Default: no output.
	Logger *zerolog.Logger

	// Methods is registered (unnamespaced) before the adapter subscription
	// is taken, so no inbound call can race the initial method set.
	Methods Methods
}

// Option mutates the Config inside New.
type Option func(c *Config)

func WithCodec(c codec.Codec) Option {
	return func(cfg *Config) { cfg.Codec = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(cfg *Config) { cfg.Logger = &l }
}

func WithMethods(m Methods) Option {
	return func(cfg *Config) { cfg.Methods = m }
}

// Peer is one side of the channel. It owns a single adapter subscription,
// one method registry, one pending-call table and one default Proxy for
// its whole lifetime; Destroy releases all of them.
type Peer struct {
	adapter  channel.Adapter
	codec    codec.Codec
	log      zerolog.Logger
	registry *registry
	pending  *pendingTable
	proxy    *Proxy

	unsubscribe channel.CancelFunc
	destroyed   int32
}

// New subscribes to the adapter and returns a live Peer. A subscription
// failure is the adapter's error, propagated as-is.
func New(cfg Config, opts ...Option) (*Peer, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Adapter == nil {
		return nil, errors.New("peerrpc: adapter must be set")
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.JSON()
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	p := &Peer{
		adapter:  cfg.Adapter,
		codec:    cfg.Codec,
		log:      log,
		registry: newRegistry(),
		pending:  newPendingTable(),
	}
	p.proxy = &Proxy{peer: p}
	if len(cfg.Methods) > 0 {
		p.registry.register(cfg.Methods, "")
	}

	cancel, err := cfg.Adapter.Subscribe(func(payload []byte) {
		// Each payload dispatches on its own goroutine: a handler may
		// await a callback round trip, and results for it must still get
		// through.
		go p.dispatch(payload)
	})
	if err != nil {
		return nil, err
	}
	p.unsubscribe = cancel
	return p, nil
}

// Register inserts each method under its flat key, overwriting existing
// entries. The method set is returned unchanged so call sites can keep a
// reference to what they registered.
func (p *Peer) Register(methods Methods, namespace ...string) (Methods, error) {
	if p.isDestroyed() {
		return nil, ErrDestroyed
	}
	if len(methods) == 0 {
		return nil, ErrNoMethods
	}
	p.registry.register(methods, firstOf(namespace))
	return methods, nil
}

// Deregister removes each named method; keys that are not registered are
// skipped without error.
func (p *Peer) Deregister(methods Methods, namespace ...string) (Methods, error) {
	if p.isDestroyed() {
		return nil, ErrDestroyed
	}
	if len(methods) == 0 {
		return nil, ErrNoMethods
	}
	p.registry.deregister(methods, firstOf(namespace))
	return methods, nil
}

// Proxy returns the default, unnamespaced call proxy.
func (p *Peer) Proxy() *Proxy { return p.proxy }

// Use returns a proxy that prefixes every method name with namespace.
// Views are stateless; creating many for the same namespace is cheap.
func (p *Peer) Use(namespace string) *Proxy {
	return &Proxy{peer: p, namespace: namespace}
}

// Destroy cancels the adapter subscription, clears the registry and
// rejects every pending future with ErrDestroyed. The peer is inert
// afterwards: calls return rejected futures and Register fails.
func (p *Peer) Destroy() error {
	if !atomic.CompareAndSwapInt32(&p.destroyed, 0, 1) {
		return ErrDestroyed
	}
	p.unsubscribe()
	p.registry.clear()
	for _, fut := range p.pending.close() {
		fut.settle(nil, ErrDestroyed)
	}
	return nil
}

func (p *Peer) isDestroyed() bool {
	return atomic.LoadInt32(&p.destroyed) == 1
}

func firstOf(namespace []string) string {
	if len(namespace) > 0 {
		return namespace[0]
	}
	return ""
}
