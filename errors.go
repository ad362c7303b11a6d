package peerrpc

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoMethods is returned by Register and Deregister when no method
	// set was supplied.
	ErrNoMethods = errors.New("peerrpc: no methods supplied")

	// ErrDestroyed is returned by every operation on a destroyed peer, and
	// rejects any future still pending when Destroy runs.
	ErrDestroyed = errors.New("peerrpc: peer destroyed")
)

// ErrorNamer lets a handler error carry a name across the wire. Errors
// without it travel under the generic name "Error".
type ErrorNamer interface {
	ErrorName() string
}

// RemoteError is what a rejected future carries when the remote handler
// failed: the normalized {message, name} pair from the call-result payload.
type RemoteError struct {
	Message string
	Name    string
}

func (e *RemoteError) Error() string {
	if e.Name != "" {
		return e.Name + ": " + e.Message
	}
	return e.Message
}

func (e *RemoteError) ErrorName() string { return e.Name }

// normalizeError reduces a handler failure to its wire form. Only values
// satisfying error are reduced to {message, name}; anything else (a raw
// panic value) is stringified into the message verbatim with no name.
func normalizeError(v any) *wireError {
	if err, ok := v.(error); ok {
		name := "Error"
		var namer ErrorNamer
		if errors.As(err, &namer) {
			name = namer.ErrorName()
		}
		return &wireError{Message: err.Error(), Name: name}
	}
	return &wireError{Message: fmt.Sprint(v)}
}
