package peerrpc

import (
	"reflect"

	"github.com/pkg/errors"
)

// Proxy synthesizes outgoing calls for arbitrary method names. Go has no
// dynamic property access, so the proxy is an interception layer keyed by
// string: any name handed to Call becomes a remote invocation without
// prior declaration on either side.
//
// A namespaced Proxy (from Peer.Use) prefixes every method name before
// delegating; it holds no state beyond the namespace string.
type Proxy struct {
	peer      *Peer
	namespace string
}

// Call issues a remote invocation of method and returns its future.
//
// Arguments of type Handler (or any func(...any) (any, error)) are not
// serialized: each is registered locally under a fresh "callback-<token>"
// key and travels as a callback reference, so the remote side can invoke
// it and the invocation routes back here. Such entries are never removed
// from the registry; see the Peer doc comment. A func of any other
// signature rejects the future without touching the wire.
func (p *Proxy) Call(method string, args ...any) *Future {
	return p.peer.call(methodKey(p.namespace, method), args)
}

func (p *Peer) call(method string, args []any) *Future {
	if p.isDestroyed() {
		f := newFuture()
		f.settle(nil, ErrDestroyed)
		return f
	}

	wireArgs := make([]any, len(args))
	for i, arg := range args {
		if h, ok := asHandler(arg); ok {
			name := callbackPrefix + newToken()
			p.registry.register(Methods{name: h}, "")
			wireArgs[i] = callbackRef{Marker: true, CallbackMethodName: name}
			continue
		}
		if arg != nil && reflect.TypeOf(arg).Kind() == reflect.Func {
			f := newFuture()
			f.settle(nil, errors.Errorf("peerrpc: callback argument %d has unsupported type %T, want func(...any) (any, error)", i, arg))
			return f
		}
		wireArgs[i] = arg
	}

	token := newToken()
	fut, ok := p.pending.add(token)
	if !ok {
		fut.settle(nil, ErrDestroyed)
		return fut
	}

	payload, err := p.codec.Marshal(callMessage{
		Type:   typeCall,
		Method: method,
		Args:   wireArgs,
		Token:  token,
	})
	if err != nil {
		p.pending.take(token)
		fut.settle(nil, errors.Wrap(err, "peerrpc: encode call"))
		return fut
	}

	if err := p.adapter.Post(payload); err != nil {
		p.pending.take(token)
		fut.settle(nil, errors.Wrap(err, "peerrpc: post call"))
		return fut
	}

	p.log.Debug().Str("method", method).Str("token", token).Msg("call sent")
	return fut
}

func asHandler(arg any) (Handler, bool) {
	switch fn := arg.(type) {
	case Handler:
		return fn, true
	case func(args ...any) (any, error):
		return fn, true
	}
	return nil, false
}

// forwarder builds the local stand-in for an inbound callback reference:
// invoking it performs an outbound call of the callback's method name, so
// callbacks are themselves remote calls back to the side that owns the
// function.
func (p *Peer) forwarder(name string) Handler {
	return func(args ...any) (any, error) {
		return p.call(name, args).Result()
	}
}
