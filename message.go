package peerrpc

const (
	typeCall       = "call"
	typeCallResult = "call-result"

	resultSuccess = "success"
	resultFail    = "fail"

	callbackMarkerKey = "__rpc_callback__"
	callbackNameKey   = "callbackMethodName"
	callbackPrefix    = "callback-"
)

// callMessage is the outbound "call" payload.
type callMessage struct {
	Type   string `json:"type" cbor:"type"`
	Method string `json:"method" cbor:"method"`
	Args   []any  `json:"args" cbor:"args"`
	Token  string `json:"token" cbor:"token"`
}

// callResultMessage answers exactly one callMessage, echoing its token.
// Data has no omitempty: zero results (0, false, "") are real values and
// must survive the trip.
type callResultMessage struct {
	Type   string     `json:"type" cbor:"type"`
	Result string     `json:"result" cbor:"result"`
	Data   any        `json:"data" cbor:"data"`
	Error  *wireError `json:"error,omitempty" cbor:"error,omitempty"`
	Token  string     `json:"token" cbor:"token"`
}

type wireError struct {
	Message string `json:"message" cbor:"message"`
	Name    string `json:"name,omitempty" cbor:"name,omitempty"`
}

// callbackRef is the marshalled stand-in for a function argument. The side
// that owns the function registers it under CallbackMethodName; the other
// side calls that name like any other method.
type callbackRef struct {
	Marker             bool   `json:"__rpc_callback__" cbor:"__rpc_callback__"`
	CallbackMethodName string `json:"callbackMethodName" cbor:"callbackMethodName"`
}

// inboundMessage is the union of both payload shapes; Type tells them
// apart. Unknown shapes keep Type empty and are dropped by the dispatcher.
type inboundMessage struct {
	Type   string     `json:"type" cbor:"type"`
	Method string     `json:"method" cbor:"method"`
	Args   []any      `json:"args" cbor:"args"`
	Result string     `json:"result" cbor:"result"`
	Data   any        `json:"data" cbor:"data"`
	Error  *wireError `json:"error" cbor:"error"`
	Token  string     `json:"token" cbor:"token"`
}

// callbackName recognizes a decoded callbackRef inside an argument list.
// JSON decodes maps with string keys, CBOR with interface{} keys; both are
// accepted.
func callbackName(arg any) (string, bool) {
	switch m := arg.(type) {
	case map[string]any:
		if marker, _ := m[callbackMarkerKey].(bool); !marker {
			return "", false
		}
		name, ok := m[callbackNameKey].(string)
		return name, ok && name != ""
	case map[any]any:
		if marker, _ := m[callbackMarkerKey].(bool); !marker {
			return "", false
		}
		name, ok := m[callbackNameKey].(string)
		return name, ok && name != ""
	}
	return "", false
}
