// Package codec turns the structured RPC payloads into the bytes that a
// channel adapter moves. The format is an embedder choice; both sides of a
// channel must agree on it.
package codec

// Codec marshals structured payloads to bytes and back.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
