package translate

import (
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/casualjim/rectify/upstream"
)

// fragmentDelta is the provider-neutral view of one fragment: the text it
// contributed, the tool-call increments it carried, and the declared
// termination reason if one was present.
type fragmentDelta struct {
	text     string
	calls    []callDelta
	declared string
	// terminal is set when the payload itself signals end-of-stream
	// (anthropic message_stop, openai finish on a complete object).
	terminal bool
}

// callDelta is one tool-call increment. key identifies the invocation the
// increment belongs to across fragments: the provider's stream index when
// present, otherwise the call id.
type callDelta struct {
	key  string
	id   string
	name string
	args string
}

func parseFragment(frag upstream.Fragment) fragmentDelta {
	switch frag.Provider {
	case upstream.OpenAI:
		return parseOpenAI(frag.Payload)
	case upstream.Anthropic:
		return parseAnthropic(frag.Payload)
	case upstream.Gemini:
		return parseGemini(frag.Payload)
	default:
		return parseGeneric(frag.Payload)
	}
}

// hasStructure reports whether the payload carries any of the structural
// fields required for its declared provider. A complete payload without
// them is malformed, not an empty success.
func hasStructure(frag upstream.Fragment) bool {
	payload := frag.Payload
	switch frag.Provider {
	case upstream.OpenAI:
		return payload.Get("choices").Exists()
	case upstream.Anthropic:
		return payload.Get("content").Exists() || payload.Get("type").Exists()
	case upstream.Gemini:
		return payload.Get("candidates").Exists()
	default:
		return payload.Get("choices").Exists() ||
			payload.Get("content").Exists() ||
			payload.Get("type").Exists() ||
			payload.Get("candidates").Exists()
	}
}

// parseOpenAI handles both choices[].delta (streamed) and
// choices[].message (complete) shapes.
func parseOpenAI(payload gjson.Result) fragmentDelta {
	var d fragmentDelta
	for _, choice := range payload.Get("choices").Array() {
		if reason := choice.Get("finish_reason"); reason.Type == gjson.String {
			d.declared = reason.String()
		}

		for _, source := range []string{"delta", "message"} {
			body := choice.Get(source)
			if !body.Exists() {
				continue
			}
			if content := body.Get("content"); content.Type == gjson.String {
				d.text += content.String()
			}
			for ci, call := range body.Get("tool_calls").Array() {
				cd := callDelta{
					id:   call.Get("id").String(),
					name: call.Get("function.name").String(),
					args: call.Get("function.arguments").String(),
				}
				// Streamed deltas carry the id on the first increment only;
				// the index is the stable identity across increments.
				switch idx := call.Get("index"); {
				case idx.Exists():
					cd.key = "idx:" + strconv.Itoa(int(idx.Int()))
				case cd.id != "":
					cd.key = cd.id
				default:
					cd.key = "pos:" + strconv.Itoa(ci)
				}
				d.calls = append(d.calls, cd)
			}
			if fc := body.Get("function_call"); fc.Exists() {
				d.calls = append(d.calls, callDelta{
					key:  "function_call",
					name: fc.Get("name").String(),
					args: fc.Get("arguments").String(),
				})
			}
		}
	}
	return d
}

// parseAnthropic handles both the complete message object (content[]
// blocks plus stop_reason) and the streamed SSE event envelopes.
func parseAnthropic(payload gjson.Result) fragmentDelta {
	var d fragmentDelta

	switch payload.Get("type").String() {
	case "content_block_start":
		block := payload.Get("content_block")
		if block.Get("type").String() == "tool_use" {
			d.calls = append(d.calls, callDelta{
				key:  anthropicKey(payload.Get("index").Int()),
				id:   block.Get("id").String(),
				name: block.Get("name").String(),
			})
		}
		return d
	case "content_block_delta":
		delta := payload.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			d.text = delta.Get("text").String()
		case "input_json_delta":
			d.calls = append(d.calls, callDelta{
				key:  anthropicKey(payload.Get("index").Int()),
				args: delta.Get("partial_json").String(),
			})
		}
		return d
	case "message_delta":
		d.declared = payload.Get("delta.stop_reason").String()
		return d
	case "message_stop":
		d.terminal = true
		return d
	case "content_block_stop", "message_start", "ping":
		return d
	}

	// Complete message object.
	if reason := payload.Get("stop_reason"); reason.Type == gjson.String {
		d.declared = reason.String()
	}
	for _, block := range payload.Get("content").Array() {
		switch block.Get("type").String() {
		case "text":
			d.text += block.Get("text").String()
		case "tool_use":
			d.calls = append(d.calls, callDelta{
				key:  block.Get("id").String(),
				id:   block.Get("id").String(),
				name: block.Get("name").String(),
				args: block.Get("input").Raw,
			})
		}
	}
	return d
}

// anthropicKey ties streamed input_json_delta events, which carry only a
// block index, back to the invocation opened by content_block_start.
func anthropicKey(index int64) string {
	return "block:" + strconv.FormatInt(index, 10)
}

// parseGemini handles candidates[].content.parts[] for both streamed and
// complete payloads; gemini increments are shaped like small complete
// objects.
func parseGemini(payload gjson.Result) fragmentDelta {
	var d fragmentDelta
	for _, candidate := range payload.Get("candidates").Array() {
		if reason := candidate.Get("finishReason"); reason.Type == gjson.String {
			d.declared = reason.String()
		}
		for pi, part := range candidate.Get("content.parts").Array() {
			if text := part.Get("text"); text.Type == gjson.String {
				d.text += text.String()
			}
			if fc := part.Get("functionCall"); fc.Exists() {
				name := fc.Get("name").String()
				key := name
				if key == "" {
					key = "part:" + strconv.Itoa(pi)
				}
				d.calls = append(d.calls, callDelta{
					key:  key,
					name: name,
					args: fc.Get("args").Raw,
				})
			}
		}
	}
	return d
}

// parseGeneric tries each known shape until one yields anything.
func parseGeneric(payload gjson.Result) fragmentDelta {
	for _, parse := range []func(gjson.Result) fragmentDelta{parseOpenAI, parseAnthropic, parseGemini} {
		d := parse(payload)
		if d.text != "" || len(d.calls) > 0 || d.declared != "" || d.terminal {
			return d
		}
	}
	return fragmentDelta{}
}
