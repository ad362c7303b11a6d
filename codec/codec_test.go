package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peerlink/peerrpc/codec"
)

type sample struct {
	Method string `json:"method" cbor:"method"`
	Args   []any  `json:"args" cbor:"args"`
}

func TestJSON(t *testing.T) {
	c := codec.JSON()
	require.Equal(t, "application/json", c.ContentType())

	data, err := c.Marshal(sample{Method: "add", Args: []any{1, "x"}})
	require.NoError(t, err)

	var got sample
	require.NoError(t, c.Unmarshal(data, &got))
	require.Equal(t, "add", got.Method)
	require.Equal(t, float64(1), got.Args[0])
}

func TestCBOR(t *testing.T) {
	c, err := codec.CBOR()
	require.NoError(t, err)
	require.Equal(t, "application/cbor", c.ContentType())

	data, err := c.Marshal(sample{Method: "add", Args: []any{"x"}})
	require.NoError(t, err)

	var got sample
	require.NoError(t, c.Unmarshal(data, &got))
	require.Equal(t, "add", got.Method)
	require.Equal(t, "x", got.Args[0])
}
