package translate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/casualjim/rectify/canonical"
	"github.com/casualjim/rectify/detect"
	"github.com/casualjim/rectify/diag"
	"github.com/casualjim/rectify/pkg/clockx"
	"github.com/casualjim/rectify/pkg/uuidx"
	"github.com/casualjim/rectify/stopreason"
	"github.com/casualjim/rectify/upstream"
)

// Translator is a per-response state machine that consumes provider-native
// fragments and emits the canonical event sequence. One Translator owns
// one response; instances share no mutable state and are not safe for
// concurrent use by multiple goroutines.
type Translator struct {
	requestID uuid.UUID
	provider  upstream.Provider
	detector  *detect.Detector
	hook      diag.Hook
	clock     clockx.Clock

	state     State
	started   bool
	messageID string

	nextIndex int
	// textIndex is the open text block, -1 when none.
	textIndex int
	textBuf   strings.Builder

	invocations *orderedmap.OrderedMap[string, *Invocation]
	detection   detect.Result
	declared    string

	blocks     []canonical.Block
	stopReason canonical.StopReason
	failure    *canonical.ErrorEvent
}

// New builds a Translator for one response. A nil clock falls back to
// wall time; diagnostics are stamped through it either way.
func New(requestID uuid.UUID, provider upstream.Provider, detector *detect.Detector, hook diag.Hook, clock clockx.Clock) *Translator {
	if hook == nil {
		hook = diag.NoopHook{}
	}
	if clock == nil {
		clock = clockx.Real()
	}
	return &Translator{
		requestID:   requestID,
		provider:    provider,
		detector:    detector,
		hook:        hook,
		clock:       clock,
		state:       Streaming,
		messageID:   "msg_" + uuidx.NewString(),
		textIndex:   -1,
		invocations: orderedmap.New[string, *Invocation](),
	}
}

// State returns the current lifecycle state.
func (t *Translator) State() State { return t.state }

// Push consumes one fragment and returns the canonical events it
// produced. After a terminal event has been emitted further fragments are
// ignored.
func (t *Translator) Push(ctx context.Context, frag upstream.Fragment) []canonical.Event {
	if t.state.Done() {
		slog.Debug("dropping fragment after terminal state",
			slog.String("provider", frag.Provider.String()),
			slog.String("state", t.state.String()),
		)
		return nil
	}

	if frag.Kind == upstream.KindAbort {
		detail := "upstream transport aborted"
		if frag.Err != nil {
			detail = frag.Err.Error()
		}
		return t.fail(canonical.UpstreamAborted, detail)
	}

	// A final fragment with no payload is a pure end-of-stream signal.
	if len(frag.Raw) == 0 && frag.Final {
		return t.finish(ctx)
	}

	if !frag.Valid() {
		return t.fail(canonical.MalformedUpstreamPayload, "payload is not valid JSON")
	}
	if !hasStructure(frag) {
		return t.fail(canonical.MalformedUpstreamPayload,
			"payload missing required fields for provider "+frag.Provider.String())
	}

	var events []canonical.Event
	if !t.started {
		t.started = true
		events = append(events, canonical.MessageStart{ID: t.messageID})
	}

	t.detection = t.detection.Union(t.detector.Detect(frag))

	d := parseFragment(frag)
	if d.text != "" {
		events = append(events, t.pushText(d.text)...)
	}
	for _, cd := range d.calls {
		events = append(events, t.pushCall(cd)...)
	}
	if d.declared != "" {
		// A declared reason on a partial fragment is recorded, never acted
		// on: termination happens only at end-of-stream, which is what
		// keeps message_stop from firing mid tool invocation.
		t.declared = d.declared
	}

	if t.state == Streaming && t.detection.HasTools() {
		t.transition(ToolPending, frag.Provider)
	}

	if d.terminal || frag.Final {
		events = append(events, t.finish(ctx)...)
	}
	return events
}

// pushText routes a text increment, opening a text block if none is open.
func (t *Translator) pushText(text string) []canonical.Event {
	var events []canonical.Event
	if t.textIndex < 0 {
		t.textIndex = t.nextIndex
		t.nextIndex++
		events = append(events, canonical.ContentBlockStart{
			Index:     t.textIndex,
			BlockType: canonical.BlockText,
		})
	}
	t.textBuf.WriteString(text)
	return append(events, canonical.ContentBlockDelta{Index: t.textIndex, TextDelta: text})
}

// pushCall routes a tool-call increment into its invocation, opening the
// invocation (and closing any open text block) on first sight.
func (t *Translator) pushCall(cd callDelta) []canonical.Event {
	var events []canonical.Event

	inv, exists := t.invocations.Get(cd.key)
	if !exists {
		events = append(events, t.closeTextBlock()...)

		id := cd.id
		if id == "" {
			id = "toolu_" + uuidx.NewString()
		}
		inv = &Invocation{ID: id, Name: cd.name, Index: t.nextIndex}
		t.nextIndex++
		t.invocations.Set(cd.key, inv)
		events = append(events, canonical.ContentBlockStart{
			Index:     inv.Index,
			BlockType: canonical.BlockToolUse,
			ToolName:  inv.Name,
			ToolID:    inv.ID,
		})
	}
	if inv.Name == "" && cd.name != "" {
		inv.Name = cd.name
	}
	if cd.args != "" {
		inv.Append(cd.args)
		events = append(events, canonical.ContentBlockDelta{Index: inv.Index, ArgsDelta: cd.args})
	}
	return events
}

func (t *Translator) closeTextBlock() []canonical.Event {
	if t.textIndex < 0 {
		return nil
	}
	index := t.textIndex
	t.blocks = append(t.blocks, canonical.Block{Type: canonical.BlockText, Text: t.textBuf.String()})
	t.textBuf.Reset()
	t.textIndex = -1
	return []canonical.Event{canonical.ContentBlockStop{Index: index}}
}

// finish drives the response through Terminating to Terminated: finalize
// every invocation (degraded if the upstream completed mid call), close
// all blocks, reconcile the stop reason exactly once, and emit the
// terminal pair.
func (t *Translator) finish(ctx context.Context) []canonical.Event {
	if t.state.Done() {
		return nil
	}
	if !t.started {
		// The stream ended without a single payload fragment. Failing is
		// the only honest outcome; an empty success would hide the hang.
		return t.fail(canonical.MalformedUpstreamPayload, "upstream produced no payload")
	}

	events := t.closeTextBlock()

	for pair := t.invocations.Oldest(); pair != nil; pair = pair.Next() {
		inv := pair.Value
		inv.finalize()
		t.blocks = append(t.blocks, t.invocationBlock(inv))
		events = append(events, canonical.ContentBlockStop{Index: inv.Index})
	}

	t.transition(Terminating, t.provider)

	outcome := stopreason.Reconcile(t.requestID, t.declared, t.provider, t.detection, t.clock.Now())
	if outcome.Correction != nil {
		t.hook.OnCorrection(ctx, *outcome.Correction)
	}
	if outcome.Ambiguity != nil {
		t.hook.OnAmbiguity(ctx, *outcome.Ambiguity)
	}
	t.stopReason = outcome.Reason

	// The reconciler can land on tool_use off textual signal alone, with
	// no structured invocation ever opened. The detected call is then
	// surfaced as a degraded tool block holding the accumulated text, so
	// a tool_use response always carries at least one tool block.
	if t.stopReason == canonical.ToolUse && t.invocations.Len() == 0 && t.detection.HasTools() {
		events = append(events, t.synthesizeToolBlock()...)
	}

	events = append(events,
		canonical.MessageDelta{StopReason: t.stopReason},
		canonical.MessageStop{},
	)
	t.transition(Terminated, t.provider)
	return events
}

func (t *Translator) synthesizeToolBlock() []canonical.Event {
	inv := &Invocation{
		ID:    "toolu_" + uuidx.NewString(),
		Name:  "unparsed_tool_call",
		Index: t.nextIndex,
	}
	t.nextIndex++
	for _, block := range t.blocks {
		if block.Type == canonical.BlockText {
			inv.Append(block.Text)
		}
	}
	inv.complete = true
	inv.degraded = true
	t.blocks = append(t.blocks, t.invocationBlock(inv))
	return []canonical.Event{
		canonical.ContentBlockStart{
			Index:     inv.Index,
			BlockType: canonical.BlockToolUse,
			ToolName:  inv.Name,
			ToolID:    inv.ID,
		},
		canonical.ContentBlockStop{Index: inv.Index},
	}
}

func (t *Translator) invocationBlock(inv *Invocation) canonical.Block {
	block := canonical.Block{
		Type:     canonical.BlockToolUse,
		ToolID:   inv.ID,
		ToolName: inv.Name,
	}
	if input, ok := inv.Arguments(); ok {
		block.Input = input
	} else {
		block.RawInput = inv.Buffer()
		block.Degraded = true
	}
	return block
}

// Fail forces the failure terminal state from outside the fragment flow,
// for terminal conditions the transport layer or queue manager observed
// (timeouts, cancellations). Returns nil when already terminal.
func (t *Translator) Fail(kind canonical.ErrorKind, detail string) []canonical.Event {
	if t.state.Done() {
		return nil
	}
	return t.fail(kind, detail)
}

// fail moves to the failure terminal state and emits the single
// ErrorEvent. The error event is itself the terminal signal; callers are
// never left waiting and never receive a fabricated message_stop.
func (t *Translator) fail(kind canonical.ErrorKind, detail string) []canonical.Event {
	ev := canonical.ErrorEvent{Kind: kind, Detail: detail}
	t.failure = &ev
	t.transition(Errored, t.provider)
	return []canonical.Event{ev}
}

func (t *Translator) transition(to State, provider upstream.Provider) {
	from := t.state
	t.state = to
	slog.Debug("translator state transition",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.String("provider", provider.String()),
	)
}

// Response assembles the non-streaming equivalent of the emitted event
// sequence. Valid only after the translator reached Terminated; in the
// failure state it returns the terminal error instead.
func (t *Translator) Response() (*canonical.Response, error) {
	switch t.state {
	case Terminated:
		return &canonical.Response{
			ID:         t.messageID,
			Content:    t.blocks,
			StopReason: t.stopReason,
		}, nil
	case Errored:
		return nil, *t.failure
	default:
		return nil, errIncomplete
	}
}
