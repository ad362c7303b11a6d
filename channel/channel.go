// Package channel defines the transport boundary the RPC core depends on.
//
// An Adapter moves opaque payloads between exactly two sides. It makes no
// promises about delivery, ordering or framing beyond "a payload posted on
// one side may show up at the other side's listeners". Serialization,
// reconnection and authentication are all the adapter's business.
package channel

// Listener receives every payload arriving on the adapter. Not every
// payload on a shared channel is an RPC message; listeners must tolerate
// foreign traffic.
type Listener func(payload []byte)

// CancelFunc detaches a previously subscribed listener. Go functions are
// not comparable, so unsubscribe is the cancel returned by Subscribe rather
// than a remove-by-value call.
type CancelFunc func()

// Adapter is a bidirectional message transport between two peers.
type Adapter interface {
	// Subscribe attaches fn to the inbound side. The returned cancel
	// detaches it; calling the cancel more than once is harmless.
	Subscribe(fn Listener) (CancelFunc, error)

	// Post sends one payload to the other side.
	Post(payload []byte) error
}
