package testlogger

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type writer struct {
	t testing.TB
}

func (w writer) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\r\n"))
	return len(p), nil
}

// New returns a zerolog logger that writes through t.Log, so peer
// diagnostics end up attached to the right test.
func New(t testing.TB) zerolog.Logger {
	return zerolog.New(writer{t: t}).With().Timestamp().Logger()
}
