package detect

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/casualjim/rectify/upstream"
)

// The textual patterns a tool call leaves behind when a provider (or a
// model) encodes it inside plain text instead of a structured field. Each
// pattern carries its own confidence; JSON-shaped markers are stronger
// evidence than prose.
var textualPatterns = []struct {
	re         *regexp.Regexp
	confidence float64
}{
	{regexp.MustCompile(`\{"type"\s*:\s*"tool_use"`), 0.8},
	{regexp.MustCompile(`"tool_calls"\s*:\s*\[`), 0.8},
	{regexp.MustCompile(`"function_call"\s*:\s*\{`), 0.8},
	{regexp.MustCompile(`Tool call:\s*\w+\s*\(`), 0.6},
}

// detectTextual scans textual content in overlapping windows. The overlap
// exists because a single invocation's textual representation can straddle
// a chunk boundary; without it, split patterns are missed. Window count is
// bounded to cap scan cost on large payloads.
func (d *Detector) detectTextual(frag upstream.Fragment) Result {
	text := extractText(frag)
	if text == "" {
		return Result{}
	}

	// Matches are deduplicated by absolute offset so the overlap region
	// does not double count.
	matches := map[int]struct{}{}
	var confidence float64

	step := d.cfg.WindowSize - d.cfg.WindowOverlap
	for w, start := 0, 0; start < len(text) && w < d.cfg.MaxWindows; w, start = w+1, start+step {
		end := min(start+d.cfg.WindowSize, len(text))
		window := text[start:end]
		for _, pattern := range textualPatterns {
			for _, loc := range pattern.re.FindAllStringIndex(window, -1) {
				matches[start+loc[0]] = struct{}{}
				confidence = max(confidence, pattern.confidence)
			}
		}
		if end == len(text) {
			break
		}
	}

	if len(matches) == 0 {
		return Result{}
	}
	return Result{
		ToolCount:  len(matches),
		Confidence: confidence,
		Methods:    []string{MethodTextual},
	}
}

// extractText pulls the textual content out of the payload for the known
// provider shapes; when nothing matches it falls back to the raw bytes so
// malformed payloads still get scanned.
func extractText(frag upstream.Fragment) string {
	if frag.Kind == upstream.KindAbort {
		return ""
	}
	var sb strings.Builder
	payload := frag.Payload

	appendStr := func(r gjson.Result) {
		if r.Type == gjson.String && r.Str != "" {
			sb.WriteString(r.Str)
			sb.WriteByte('\n')
		}
	}

	for _, choice := range payload.Get("choices").Array() {
		appendStr(choice.Get("message.content"))
		appendStr(choice.Get("delta.content"))
	}
	for _, block := range payload.Get("content").Array() {
		appendStr(block.Get("text"))
	}
	appendStr(payload.Get("delta.text"))
	for _, candidate := range payload.Get("candidates").Array() {
		for _, part := range candidate.Get("content.parts").Array() {
			appendStr(part.Get("text"))
		}
	}

	if sb.Len() == 0 {
		return string(frag.Raw)
	}
	return sb.String()
}
