package canonical

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	messageStartJSON    = []byte(`{"type":"message_start"}`)
	blockStartJSON      = []byte(`{"type":"content_block_start"}`)
	blockDeltaJSON      = []byte(`{"type":"content_block_delta"}`)
	blockStopJSON       = []byte(`{"type":"content_block_stop"}`)
	messageDeltaJSON    = []byte(`{"type":"message_delta"}`)
	messageStopWireJSON = []byte(`{"type":"message_stop"}`)
	errorEventJSON      = []byte(`{"type":"error"}`)
)

// BlockType is the content block vocabulary carried by ContentBlockStart.
type BlockType string

const (
	BlockText    BlockType = "text"
	BlockToolUse BlockType = "tool_use"
)

// Event is the tagged union of canonical stream events. It is the only
// artifact the library exposes downstream; the JSON encodings below are
// bit-stable for client compatibility.
type Event interface {
	canonicalEvent()
}

// MessageStart opens a response. ID is synthesized when the upstream does
// not supply one.
type MessageStart struct {
	ID string `json:"id"`
}

func (MessageStart) canonicalEvent() {}

// ContentBlockStart opens a content block at Index. ToolName and ToolID
// are set only for tool_use blocks.
type ContentBlockStart struct {
	Index     int       `json:"index"`
	BlockType BlockType `json:"block_type"`
	ToolName  string    `json:"tool_name,omitempty"`
	ToolID    string    `json:"tool_id,omitempty"`
}

func (ContentBlockStart) canonicalEvent() {}

// ContentBlockDelta carries an increment for the block at Index: text for
// text blocks, partial tool arguments for tool_use blocks. Exactly one of
// TextDelta and ArgsDelta is non-empty.
type ContentBlockDelta struct {
	Index     int    `json:"index"`
	TextDelta string `json:"text_delta,omitempty"`
	ArgsDelta string `json:"args_delta,omitempty"`
}

func (ContentBlockDelta) canonicalEvent() {}

// ContentBlockStop closes the block at Index.
type ContentBlockStop struct {
	Index int `json:"index"`
}

func (ContentBlockStop) canonicalEvent() {}

// MessageDelta carries the reconciled stop reason. Emitted exactly once,
// immediately before MessageStop.
type MessageDelta struct {
	StopReason StopReason `json:"stop_reason"`
}

func (MessageDelta) canonicalEvent() {}

// MessageStop is the success terminal event. Exactly one of MessageStop
// and ErrorEvent terminates every processing run.
type MessageStop struct{}

func (MessageStop) canonicalEvent() {}

// ErrorEvent is the failure terminal event. No MessageStop follows it.
type ErrorEvent struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
}

func (ErrorEvent) canonicalEvent() {}

func (e ErrorEvent) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// MarshalJSON implements custom JSON marshaling for MessageStart
func (m MessageStart) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(messageStartJSON, "message.id", m.ID)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "message.role", "assistant")
}

// MarshalJSON implements custom JSON marshaling for ContentBlockStart
func (c ContentBlockStart) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(blockStartJSON, "index", c.Index)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "content_block.type", string(c.BlockType))
	if err != nil {
		return nil, err
	}
	if c.BlockType == BlockToolUse {
		result, err = sjson.SetBytes(result, "content_block.id", c.ToolID)
		if err != nil {
			return nil, err
		}
		result, err = sjson.SetBytes(result, "content_block.name", c.ToolName)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// MarshalJSON implements custom JSON marshaling for ContentBlockDelta
func (c ContentBlockDelta) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(blockDeltaJSON, "index", c.Index)
	if err != nil {
		return nil, err
	}
	if c.ArgsDelta != "" {
		result, err = sjson.SetBytes(result, "delta.type", "input_json_delta")
		if err != nil {
			return nil, err
		}
		return sjson.SetBytes(result, "delta.partial_json", c.ArgsDelta)
	}
	result, err = sjson.SetBytes(result, "delta.type", "text_delta")
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "delta.text", c.TextDelta)
}

// MarshalJSON implements custom JSON marshaling for ContentBlockStop
func (c ContentBlockStop) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(blockStopJSON, "index", c.Index)
}

// MarshalJSON implements custom JSON marshaling for MessageDelta
func (m MessageDelta) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(messageDeltaJSON, "delta.stop_reason", string(m.StopReason))
}

// MarshalJSON implements custom JSON marshaling for MessageStop
func (MessageStop) MarshalJSON() ([]byte, error) {
	return messageStopWireJSON, nil
}

// MarshalJSON implements custom JSON marshaling for ErrorEvent
func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(errorEventJSON, "error.type", string(e.Kind))
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "error.message", e.Detail)
}

// ParseEvent decodes a canonical event from its wire form.
func ParseEvent(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	parsed := gjson.ParseBytes(data)
	switch parsed.Get("type").String() {
	case "message_start":
		return MessageStart{ID: parsed.Get("message.id").String()}, nil
	case "content_block_start":
		ev := ContentBlockStart{
			Index:     int(parsed.Get("index").Int()),
			BlockType: BlockType(parsed.Get("content_block.type").String()),
		}
		if ev.BlockType == BlockToolUse {
			ev.ToolID = parsed.Get("content_block.id").String()
			ev.ToolName = parsed.Get("content_block.name").String()
		}
		return ev, nil
	case "content_block_delta":
		ev := ContentBlockDelta{Index: int(parsed.Get("index").Int())}
		switch parsed.Get("delta.type").String() {
		case "input_json_delta":
			ev.ArgsDelta = parsed.Get("delta.partial_json").String()
		case "text_delta":
			ev.TextDelta = parsed.Get("delta.text").String()
		default:
			return nil, fmt.Errorf("unknown delta type %q", parsed.Get("delta.type").String())
		}
		return ev, nil
	case "content_block_stop":
		return ContentBlockStop{Index: int(parsed.Get("index").Int())}, nil
	case "message_delta":
		return MessageDelta{StopReason: StopReason(parsed.Get("delta.stop_reason").String())}, nil
	case "message_stop":
		return MessageStop{}, nil
	case "error":
		return ErrorEvent{
			Kind:   ErrorKind(parsed.Get("error.type").String()),
			Detail: parsed.Get("error.message").String(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", parsed.Get("type").String())
	}
}

// Terminal reports whether ev ends a processing run.
func Terminal(ev Event) bool {
	switch ev.(type) {
	case MessageStop, ErrorEvent:
		return true
	}
	return false
}
