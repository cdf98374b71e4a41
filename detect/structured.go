package detect

import (
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/casualjim/rectify/upstream"
)

// Structured detection is authoritative when it fires: the provider put
// the invocation in a dedicated field, so confidence is 1.0.
const structuredConfidence = 1.0

func detectStructured(frag upstream.Fragment) Result {
	if !frag.Valid() {
		return Result{Methods: []string{MethodParseFailure}}
	}

	seen := map[string]struct{}{}
	switch frag.Provider {
	case upstream.OpenAI:
		collectOpenAI(frag.Payload, seen)
	case upstream.Anthropic:
		collectAnthropic(frag.Payload, seen)
	case upstream.Gemini:
		collectGemini(frag.Payload, seen)
	default:
		collectOpenAI(frag.Payload, seen)
		collectAnthropic(frag.Payload, seen)
		collectGemini(frag.Payload, seen)
	}

	if len(seen) == 0 {
		return Result{}
	}
	return Result{
		ToolCount:  len(seen),
		Confidence: structuredConfidence,
		Methods:    []string{MethodStructured},
	}
}

// collectOpenAI walks choices[].message.tool_calls and
// choices[].delta.tool_calls, plus the legacy function_call field.
func collectOpenAI(payload gjson.Result, seen map[string]struct{}) {
	for _, choice := range payload.Get("choices").Array() {
		for _, field := range []string{"message.tool_calls", "delta.tool_calls"} {
			for _, call := range choice.Get(field).Array() {
				markCall(seen, call.Get("id").String(), call.Get("function.name").String(), call.Get("index").Raw)
			}
		}
		for _, field := range []string{"message.function_call", "delta.function_call"} {
			if fc := choice.Get(field); fc.Exists() {
				markCall(seen, "", fc.Get("name").String(), "function_call")
			}
		}
	}
}

// collectAnthropic walks content[] blocks of type tool_use, plus the
// streamed content_block_start envelope.
func collectAnthropic(payload gjson.Result, seen map[string]struct{}) {
	for _, block := range payload.Get("content").Array() {
		if block.Get("type").String() == "tool_use" {
			markCall(seen, block.Get("id").String(), block.Get("name").String(), "")
		}
	}
	if cb := payload.Get("content_block"); cb.Get("type").String() == "tool_use" {
		markCall(seen, cb.Get("id").String(), cb.Get("name").String(), payload.Get("index").Raw)
	}
}

// collectGemini walks candidates[].content.parts[].functionCall.
func collectGemini(payload gjson.Result, seen map[string]struct{}) {
	for ci, candidate := range payload.Get("candidates").Array() {
		for pi, part := range candidate.Get("content.parts").Array() {
			if fc := part.Get("functionCall"); fc.Exists() {
				markCall(seen, "", fc.Get("name").String(), strconv.Itoa(ci)+":"+strconv.Itoa(pi))
			}
		}
	}
}

// markCall records one invocation under the most specific identity
// available, so the same call seen through several fields is counted once.
func markCall(seen map[string]struct{}, id, name, fallback string) {
	key := id
	if key == "" {
		key = name
	}
	if key == "" {
		key = fallback
	}
	if key == "" {
		key = "anonymous"
	}
	seen[key] = struct{}{}
}
