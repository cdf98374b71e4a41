package canonical

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Block is one content block of an assembled response.
type Block struct {
	Type BlockType
	// Text is set for text blocks.
	Text string
	// Tool fields are set for tool_use blocks. Input holds the parsed
	// arguments; when parsing failed the accumulated text is retained
	// verbatim in RawInput and Degraded is set. Arguments are never
	// silently dropped.
	ToolID   string
	ToolName string
	Input    json.RawMessage
	RawInput string
	Degraded bool
}

// Response is the assembled equivalent of the canonical event stream, for
// non-streaming callers. It uses the same field vocabulary as the events.
type Response struct {
	ID         string
	Content    []Block
	StopReason StopReason
}

// MarshalJSON implements custom JSON marshaling for Response
func (r Response) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes([]byte(`{}`), "id", r.ID)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "role", "assistant")
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetRawBytes(result, "content", []byte(`[]`))
	if err != nil {
		return nil, err
	}
	for _, block := range r.Content {
		encoded, err := marshalBlock(block)
		if err != nil {
			return nil, err
		}
		result, err = sjson.SetRawBytes(result, "content.-1", encoded)
		if err != nil {
			return nil, err
		}
	}
	return sjson.SetBytes(result, "stop_reason", string(r.StopReason))
}

func marshalBlock(b Block) ([]byte, error) {
	result, err := sjson.SetBytes([]byte(`{}`), "type", string(b.Type))
	if err != nil {
		return nil, err
	}
	if b.Type == BlockText {
		return sjson.SetBytes(result, "text", b.Text)
	}
	result, err = sjson.SetBytes(result, "id", b.ToolID)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "name", b.ToolName)
	if err != nil {
		return nil, err
	}
	if b.Degraded {
		result, err = sjson.SetBytes(result, "partial_input", b.RawInput)
		if err != nil {
			return nil, err
		}
		return sjson.SetBytes(result, "degraded", true)
	}
	input := b.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return sjson.SetRawBytes(result, "input", input)
}

// UnmarshalJSON implements custom JSON unmarshaling for Response
func (r *Response) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	parsed := gjson.ParseBytes(data)
	r.ID = parsed.Get("id").String()
	r.StopReason = StopReason(parsed.Get("stop_reason").String())
	r.Content = r.Content[:0]
	for _, raw := range parsed.Get("content").Array() {
		block := Block{Type: BlockType(raw.Get("type").String())}
		switch block.Type {
		case BlockText:
			block.Text = raw.Get("text").String()
		case BlockToolUse:
			block.ToolID = raw.Get("id").String()
			block.ToolName = raw.Get("name").String()
			if raw.Get("degraded").Bool() {
				block.Degraded = true
				block.RawInput = raw.Get("partial_input").String()
			} else {
				block.Input = json.RawMessage(raw.Get("input").Raw)
			}
		}
		r.Content = append(r.Content, block)
	}
	return nil
}
