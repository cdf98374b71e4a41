package translate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/rectify/canonical"
	"github.com/casualjim/rectify/detect"
	"github.com/casualjim/rectify/diag"
	"github.com/casualjim/rectify/pkg/clockx"
	"github.com/casualjim/rectify/pkg/uuidx"
	"github.com/casualjim/rectify/upstream"
)

type captureHook struct {
	corrections []diag.Correction
	ambiguities []diag.Ambiguity
	cleaned     []diag.StuckRequestsCleaned
}

func (h *captureHook) OnCorrection(_ context.Context, c diag.Correction) {
	h.corrections = append(h.corrections, c)
}

func (h *captureHook) OnAmbiguity(_ context.Context, a diag.Ambiguity) {
	h.ambiguities = append(h.ambiguities, a)
}

func (h *captureHook) OnStuckRequestsCleaned(_ context.Context, s diag.StuckRequestsCleaned) {
	h.cleaned = append(h.cleaned, s)
}

func newTranslator(provider upstream.Provider, hook diag.Hook) *Translator {
	return New(uuidx.New(), provider, detect.New(detect.Config{}), hook, nil)
}

// Diagnostics carry the injected clock's time, not the wall clock.
func TestTranslator_DiagnosticsStampedFromClock(t *testing.T) {
	frozen := time.Unix(1700000000, 0).UTC()
	hook := &captureHook{}
	tr := New(uuidx.New(), upstream.OpenAI, detect.New(detect.Config{}), hook, clockx.NewFake(frozen))

	payload := []byte(`{"choices":[{"message":{"content":"done","tool_calls":[
		{"id":"call_1","function":{"name":"Read","arguments":"{}"}}
	]},"finish_reason":"stop"}]}`)
	tr.Push(context.Background(), upstream.NewFinal(upstream.OpenAI, payload))

	require.Len(t, hook.corrections, 1)
	assert.True(t, time.Time(hook.corrections[0].Timestamp).Equal(frozen),
		"correction timestamp should come from the clock")
}

func TestTranslator_OpenAIStreamedToolCall(t *testing.T) {
	hook := &captureHook{}
	tr := newTranslator(upstream.OpenAI, hook)

	fragments := []upstream.Fragment{
		upstream.NewPayload(upstream.OpenAI, []byte(`{"choices":[{"delta":{"content":"I'll read the file."}}]}`)),
		upstream.NewPayload(upstream.OpenAI, []byte(`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"Read","arguments":"{\"path\":"}}]}}]}`)),
		upstream.NewPayload(upstream.OpenAI, []byte(`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"a.txt\"}"}}]},"finish_reason":"stop"}]}`)),
	}

	var events []canonical.Event
	for _, frag := range fragments {
		events = append(events, tr.Push(context.Background(), frag)...)
	}
	assert.Equal(t, ToolPending, tr.State())
	events = append(events, tr.Push(context.Background(), upstream.NewFinal(upstream.OpenAI, nil))...)

	require.Len(t, events, 10)
	start, ok := events[0].(canonical.MessageStart)
	require.True(t, ok, "first event must be message_start")

	toolStart, ok := events[4].(canonical.ContentBlockStart)
	require.True(t, ok)
	assert.Equal(t, []canonical.Event{
		canonical.MessageStart{ID: start.ID},
		canonical.ContentBlockStart{Index: 0, BlockType: canonical.BlockText},
		canonical.ContentBlockDelta{Index: 0, TextDelta: "I'll read the file."},
		canonical.ContentBlockStop{Index: 0},
		canonical.ContentBlockStart{Index: 1, BlockType: canonical.BlockToolUse, ToolName: "Read", ToolID: toolStart.ToolID},
		canonical.ContentBlockDelta{Index: 1, ArgsDelta: `{"path":`},
		canonical.ContentBlockDelta{Index: 1, ArgsDelta: `"a.txt"}`},
		canonical.ContentBlockStop{Index: 1},
		canonical.MessageDelta{StopReason: canonical.ToolUse},
		canonical.MessageStop{},
	}, events)
	assert.Equal(t, "call_1", toolStart.ToolID, "provider call id is kept")

	// The upstream said "stop"; the structured signal wins and the override
	// is surfaced.
	require.Len(t, hook.corrections, 1)
	assert.Equal(t, canonical.EndTurn, hook.corrections[0].Original)
	assert.Equal(t, canonical.ToolUse, hook.corrections[0].Corrected)
	assert.Equal(t, 1.0, hook.corrections[0].Confidence)
	assert.Empty(t, hook.ambiguities)

	resp, err := tr.Response()
	require.NoError(t, err)
	assert.Equal(t, canonical.ToolUse, resp.StopReason)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "I'll read the file.", resp.Content[0].Text)
	assert.Equal(t, "Read", resp.Content[1].ToolName)
	assert.JSONEq(t, `{"path":"a.txt"}`, string(resp.Content[1].Input))
	assert.False(t, resp.Content[1].Degraded)
}

func TestTranslator_AnthropicStreamedEnvelopes(t *testing.T) {
	hook := &captureHook{}
	tr := newTranslator(upstream.Anthropic, hook)

	fragments := []string{
		`{"type":"message_start","message":{"id":"msg_up","role":"assistant"}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"checking"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_7","name":"Write"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"path\":\"b.txt\"}"}}`,
		`{"type":"message_delta","delta":{"stop_reason":"tool_use"}}`,
		`{"type":"message_stop"}`,
	}

	var events []canonical.Event
	for _, payload := range fragments {
		events = append(events, tr.Push(context.Background(), upstream.NewPayload(upstream.Anthropic, []byte(payload)))...)
	}

	require.NotEmpty(t, events)
	start := events[0].(canonical.MessageStart)
	assert.Equal(t, []canonical.Event{
		canonical.MessageStart{ID: start.ID},
		canonical.ContentBlockStart{Index: 0, BlockType: canonical.BlockText},
		canonical.ContentBlockDelta{Index: 0, TextDelta: "checking"},
		canonical.ContentBlockStop{Index: 0},
		canonical.ContentBlockStart{Index: 1, BlockType: canonical.BlockToolUse, ToolName: "Write", ToolID: "toolu_7"},
		canonical.ContentBlockDelta{Index: 1, ArgsDelta: `{"path":"b.txt"}`},
		canonical.ContentBlockStop{Index: 1},
		canonical.MessageDelta{StopReason: canonical.ToolUse},
		canonical.MessageStop{},
	}, events)

	// Declared and detected agree; nothing to report.
	assert.Empty(t, hook.corrections)
	assert.Empty(t, hook.ambiguities)

	resp, err := tr.Response()
	require.NoError(t, err)
	require.Len(t, resp.Content, 2)
	assert.JSONEq(t, `{"path":"b.txt"}`, string(resp.Content[1].Input))
}

func TestTranslator_GeminiCompletePayload(t *testing.T) {
	hook := &captureHook{}
	tr := newTranslator(upstream.Gemini, hook)

	payload := []byte(`{"candidates":[{"content":{"parts":[
		{"text":"on it"},
		{"functionCall":{"name":"lookup","args":{"q":"weather"}}}
	]},"finishReason":"STOP"}]}`)

	events := tr.Push(context.Background(), upstream.NewFinal(upstream.Gemini, payload))
	require.True(t, tr.State().Done())
	assert.Equal(t, canonical.MessageStop{}, events[len(events)-1])

	require.Len(t, hook.corrections, 1, "STOP with a functionCall present must be corrected")
	resp, err := tr.Response()
	require.NoError(t, err)
	assert.Equal(t, canonical.ToolUse, resp.StopReason)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "lookup", resp.Content[1].ToolName)
	assert.JSONEq(t, `{"q":"weather"}`, string(resp.Content[1].Input))
}

func TestTranslator_DeclaredReasonDoesNotTerminate(t *testing.T) {
	tr := newTranslator(upstream.OpenAI, nil)

	// finish_reason arrives while a tool call is still streaming; the
	// stream is not over until the upstream says so.
	events := tr.Push(context.Background(), upstream.NewPayload(upstream.OpenAI,
		[]byte(`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"Read","arguments":"{"}}]},"finish_reason":"tool_calls"}]}`)))
	for _, ev := range events {
		assert.False(t, canonical.Terminal(ev))
	}
	assert.False(t, tr.State().Done())

	events = tr.Push(context.Background(), upstream.NewPayload(upstream.OpenAI,
		[]byte(`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"x\":1}"}}]}}]}`)))
	for _, ev := range events {
		assert.False(t, canonical.Terminal(ev))
	}

	events = tr.Push(context.Background(), upstream.NewFinal(upstream.OpenAI, nil))
	assert.Equal(t, canonical.MessageStop{}, events[len(events)-1])

	resp, err := tr.Response()
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(resp.Content[0].Input))
}

func TestTranslator_DegradedCompletion(t *testing.T) {
	tr := newTranslator(upstream.OpenAI, nil)

	tr.Push(context.Background(), upstream.NewPayload(upstream.OpenAI,
		[]byte(`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"Read","arguments":"{\"path\": \"a."}}]}}]}`)))
	events := tr.Push(context.Background(), upstream.NewFinal(upstream.OpenAI, nil))
	assert.Equal(t, canonical.MessageStop{}, events[len(events)-1])

	resp, err := tr.Response()
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	block := resp.Content[0]
	assert.True(t, block.Degraded, "truncated arguments must be flagged")
	assert.Equal(t, `{"path": "a.`, block.RawInput, "argument text is retained verbatim")
	assert.Nil(t, block.Input)
	assert.Equal(t, canonical.ToolUse, resp.StopReason)
}

func TestTranslator_SynthesizedToolBlock(t *testing.T) {
	hook := &captureHook{}
	tr := newTranslator(upstream.Anthropic, hook)

	// Only textual signal: the model wrote the call into prose and the
	// upstream declared a plain end_turn.
	payload := []byte(`{"content":[{"type":"text","text":"Tool call: Read(path)"}],"stop_reason":"end_turn"}`)
	events := tr.Push(context.Background(), upstream.NewFinal(upstream.Anthropic, payload))
	assert.Equal(t, canonical.MessageStop{}, events[len(events)-1])

	require.Len(t, hook.corrections, 1)
	require.Len(t, hook.ambiguities, 1, "textual-only override must be flagged")

	resp, err := tr.Response()
	require.NoError(t, err)
	assert.Equal(t, canonical.ToolUse, resp.StopReason)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, canonical.BlockToolUse, resp.Content[1].Type)
	assert.Equal(t, "unparsed_tool_call", resp.Content[1].ToolName)
	assert.True(t, resp.Content[1].Degraded)
	assert.Equal(t, "Tool call: Read(path)", resp.Content[1].RawInput)
}

func TestTranslator_EmptyObjectPayload(t *testing.T) {
	tr := newTranslator(upstream.OpenAI, nil)

	events := tr.Push(context.Background(), upstream.NewFinal(upstream.OpenAI, []byte(`{}`)))
	require.Len(t, events, 1, "a malformed payload yields exactly one event")
	ev, ok := events[0].(canonical.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, canonical.MalformedUpstreamPayload, ev.Kind)
	assert.Equal(t, Errored, tr.State())

	_, err := tr.Response()
	assert.Error(t, err)
}

func TestTranslator_InvalidJSONPayload(t *testing.T) {
	tr := newTranslator(upstream.Anthropic, nil)

	events := tr.Push(context.Background(), upstream.NewPayload(upstream.Anthropic, []byte(`{"content": [`)))
	require.Len(t, events, 1)
	ev := events[0].(canonical.ErrorEvent)
	assert.Equal(t, canonical.MalformedUpstreamPayload, ev.Kind)
}

func TestTranslator_StreamWithNoPayload(t *testing.T) {
	tr := newTranslator(upstream.OpenAI, nil)

	events := tr.Push(context.Background(), upstream.NewFinal(upstream.OpenAI, nil))
	require.Len(t, events, 1)
	ev := events[0].(canonical.ErrorEvent)
	assert.Equal(t, canonical.MalformedUpstreamPayload, ev.Kind)
}

func TestTranslator_UpstreamAbort(t *testing.T) {
	tr := newTranslator(upstream.OpenAI, nil)

	tr.Push(context.Background(), upstream.NewPayload(upstream.OpenAI,
		[]byte(`{"choices":[{"delta":{"content":"partial"}}]}`)))
	events := tr.Push(context.Background(), upstream.NewAbort(upstream.OpenAI, assert.AnError))

	require.Len(t, events, 1)
	ev := events[0].(canonical.ErrorEvent)
	assert.Equal(t, canonical.UpstreamAborted, ev.Kind)
	assert.Equal(t, assert.AnError.Error(), ev.Detail)

	_, err := tr.Response()
	assert.ErrorIs(t, err, ev)
}

func TestTranslator_TerminalExactlyOnce(t *testing.T) {
	tr := newTranslator(upstream.Anthropic, nil)
	tr.Push(context.Background(), upstream.NewFinal(upstream.Anthropic,
		[]byte(`{"content":[{"type":"text","text":"done"}],"stop_reason":"end_turn"}`)))
	require.Equal(t, Terminated, tr.State())

	assert.Nil(t, tr.Push(context.Background(), upstream.NewFinal(upstream.Anthropic,
		[]byte(`{"content":[{"type":"text","text":"again"}],"stop_reason":"end_turn"}`))))
	assert.Nil(t, tr.Fail(canonical.StuckRequestTimeout, "too late"))
}

func TestTranslator_Fail(t *testing.T) {
	tr := newTranslator(upstream.OpenAI, nil)
	tr.Push(context.Background(), upstream.NewPayload(upstream.OpenAI,
		[]byte(`{"choices":[{"delta":{"content":"partial"}}]}`)))

	events := tr.Fail(canonical.StuckRequestTimeout, "request exceeded processing budget")
	require.Len(t, events, 1)
	ev := events[0].(canonical.ErrorEvent)
	assert.Equal(t, canonical.StuckRequestTimeout, ev.Kind)
	assert.Equal(t, Errored, tr.State())
}

func TestComplete(t *testing.T) {
	hook := &captureHook{}
	payload := []byte(`{"choices":[{"message":{
		"content":"done thinking",
		"tool_calls":[{"id":"call_9","function":{"name":"Write","arguments":"{\"path\":\"c.txt\"}"}}]
	},"finish_reason":"stop"}]}`)

	resp, err := Complete(context.Background(), uuidx.New(), upstream.OpenAI, detect.New(detect.Config{}), hook, nil, payload)
	require.NoError(t, err)
	assert.Equal(t, canonical.ToolUse, resp.StopReason)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "done thinking", resp.Content[0].Text)
	assert.Equal(t, "Write", resp.Content[1].ToolName)
	require.Len(t, hook.corrections, 1)
}
