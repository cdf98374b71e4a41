package translate

import (
	"log/slog"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Invocation is one tool call being assembled from fragments. The
// argument buffer is append-only until the invocation is marked complete;
// afterwards appends are dropped with a log line, never applied.
type Invocation struct {
	ID   string
	Name string
	// Index is the canonical content block index this invocation owns.
	Index int

	buf      strings.Builder
	complete bool
	degraded bool
}

// Append adds an argument fragment to the buffer.
func (i *Invocation) Append(args string) {
	if i.complete {
		slog.Debug("dropping argument fragment for completed invocation",
			slog.String("tool_id", i.ID),
			slog.String("tool_name", i.Name),
		)
		return
	}
	i.buf.WriteString(args)
}

// Complete reports whether the invocation has been finalized.
func (i *Invocation) Complete() bool { return i.complete }

// Degraded reports whether finalization could not parse the buffer.
func (i *Invocation) Degraded() bool { return i.degraded }

// Buffer returns the accumulated argument text.
func (i *Invocation) Buffer() string { return i.buf.String() }

// finalize marks the invocation complete. When the buffer parses as a
// JSON object the invocation completes cleanly; anything else (truncated
// JSON, bare primitives) is retained verbatim and the invocation is
// flagged degraded. Arguments are never silently dropped.
func (i *Invocation) finalize() {
	if i.complete {
		return
	}
	i.complete = true
	buffered := i.buf.String()
	if buffered == "" || (gjson.Valid(buffered) && gjson.Parse(buffered).IsObject()) {
		return
	}
	i.degraded = true
	slog.Warn("completing tool invocation with unparseable arguments",
		slog.String("tool_id", i.ID),
		slog.String("tool_name", i.Name),
		slog.Int("buffered_bytes", len(buffered)),
	)
}

// Arguments returns the parsed argument object, or the verbatim buffer
// with ok=false when finalization was degraded. Call after finalize.
func (i *Invocation) Arguments() (json.RawMessage, bool) {
	buffered := i.buf.String()
	if i.degraded {
		return nil, false
	}
	if buffered == "" {
		return json.RawMessage(`{}`), true
	}
	return json.RawMessage(buffered), true
}
