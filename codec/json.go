package codec

import (
	"encoding/json"
)

type jsonCodec struct{}

// JSON returns the default JSON codec. Numbers decode as float64.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
