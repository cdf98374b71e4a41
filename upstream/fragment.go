package upstream

import "github.com/tidwall/gjson"

// Kind distinguishes ordinary payload fragments from transport-level
// aborts, which are delivered through the same channel so the translator
// sees them in order.
type Kind uint8

const (
	KindPayload Kind = iota
	KindAbort
)

// Fragment is one provider-tagged unit of upstream output: either a
// complete response object or one increment of a streamed response. The
// payload is kept as raw bytes plus a parsed gjson view; nothing in the
// library ever mutates it.
type Fragment struct {
	Provider Provider
	Raw      []byte
	Payload  gjson.Result
	// Final marks the last fragment of a stream. Only meaningful for
	// streamed responses; a one-shot payload is implicitly final.
	Final bool
	Kind  Kind
	// Err carries the transport error for KindAbort fragments.
	Err error
}

// NewPayload builds a payload fragment from raw provider output. The bytes
// are parsed once here; malformed JSON yields a fragment whose Payload
// does not exist, which downstream components treat as a degraded input,
// never as a reason to panic.
func NewPayload(provider Provider, data []byte) Fragment {
	return Fragment{
		Provider: provider,
		Raw:      data,
		Payload:  gjson.ParseBytes(data),
		Kind:     KindPayload,
	}
}

// NewFinal builds the terminal fragment of a stream.
func NewFinal(provider Provider, data []byte) Fragment {
	f := NewPayload(provider, data)
	f.Final = true
	return f
}

// NewAbort builds an abort fragment for a transport-level cancellation.
func NewAbort(provider Provider, err error) Fragment {
	return Fragment{Provider: provider, Kind: KindAbort, Err: err}
}

// Valid reports whether the fragment carries well-formed JSON. Abort
// fragments are always valid; they carry no payload.
func (f Fragment) Valid() bool {
	if f.Kind == KindAbort {
		return true
	}
	return gjson.ValidBytes(f.Raw)
}
