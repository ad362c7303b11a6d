package peerrpc

import (
	"github.com/oklog/ulid/v2"
)

// newToken produces the correlation identifier for one call, and doubles as
// the stable name of a remoted callback ("callback-<token>"). ULIDs carry a
// monotonic time component plus 80 bits of entropy, which is collision-free
// for any realistic instance lifetime.
func newToken() string {
	return ulid.Make().String()
}
