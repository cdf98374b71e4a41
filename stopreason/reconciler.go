// Package stopreason reconciles a provider's declared termination signal
// with what the detector actually observed. It is the single authoritative
// location for the correction logic: a new provider quirk is a table
// entry here, not a patch somewhere else.
package stopreason

import (
	"log/slog"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/casualjim/rectify/canonical"
	"github.com/casualjim/rectify/detect"
	"github.com/casualjim/rectify/diag"
	"github.com/casualjim/rectify/upstream"
)

// Per-provider lookup tables mapping declared reasons to the canonical
// vocabulary. Lookups are case-insensitive; gemini reports upper-case
// enum names.
var (
	openaiReasons = map[string]canonical.StopReason{
		"stop":           canonical.EndTurn,
		"length":         canonical.MaxTokens,
		"tool_calls":     canonical.ToolUse,
		"function_call":  canonical.ToolUse,
		"content_filter": canonical.EndTurn,
	}
	anthropicReasons = map[string]canonical.StopReason{
		"end_turn":      canonical.EndTurn,
		"max_tokens":    canonical.MaxTokens,
		"tool_use":      canonical.ToolUse,
		"stop_sequence": canonical.StopSequence,
	}
	geminiReasons = map[string]canonical.StopReason{
		"stop":       canonical.EndTurn,
		"max_tokens": canonical.MaxTokens,
		"tool_use":   canonical.ToolUse,
	}
)

// Map translates a provider's declared reason through its lookup table.
// Unknown or empty reasons default to end_turn; the reconciler's override
// logic is what keeps that default honest.
func Map(declared string, provider upstream.Provider) canonical.StopReason {
	key := strings.ToLower(strings.TrimSpace(declared))
	var table map[string]canonical.StopReason
	switch provider {
	case upstream.OpenAI:
		table = openaiReasons
	case upstream.Anthropic:
		table = anthropicReasons
	case upstream.Gemini:
		table = geminiReasons
	default:
		if reason, ok := anthropicReasons[key]; ok {
			return reason
		}
		table = openaiReasons
	}
	if reason, ok := table[key]; ok {
		return reason
	}
	return canonical.EndTurn
}

// Outcome is the reconciled reason plus the diagnostics the decision
// produced. Diagnostics are returned rather than delivered so the caller
// controls hook dispatch.
type Outcome struct {
	Reason     canonical.StopReason
	Correction *diag.Correction
	Ambiguity  *diag.Ambiguity
}

// Reconcile produces the canonical termination reason from the provider's
// declared reason and the final detection result.
//
// Tie-break table:
//   - detection found tools, mapped reason is not tool_use: override to
//     tool_use and record a Correction (plus an Ambiguity when the signal
//     was sub-structured, since heuristics alone never force a change
//     without a warning).
//   - detection found nothing but the provider declared tool use: keep
//     tool_use, record an Ambiguity. The provider is trusted about its own
//     declaration, but the disagreement is surfaced, not guessed away.
func Reconcile(requestID uuid.UUID, declared string, provider upstream.Provider, detection detect.Result, now time.Time) Outcome {
	mapped := Map(declared, provider)
	out := Outcome{Reason: mapped}
	ts := strfmt.DateTime(now)

	switch {
	case detection.HasTools() && mapped != canonical.ToolUse:
		out.Reason = canonical.ToolUse
		out.Correction = &diag.Correction{
			RequestID:  requestID,
			Original:   mapped,
			Corrected:  canonical.ToolUse,
			ToolCount:  detection.ToolCount,
			Confidence: detection.Confidence,
			Timestamp:  ts,
		}
		if !detection.Fired(detect.MethodStructured) {
			out.Ambiguity = &diag.Ambiguity{
				RequestID:  requestID,
				Declared:   mapped,
				ToolCount:  detection.ToolCount,
				Confidence: detection.Confidence,
				Methods:    detection.Methods,
				Detail:     "correction based on non-structural signal",
				Timestamp:  ts,
			}
		}
		slog.Warn("overriding declared stop reason",
			slog.String("declared", declared),
			slog.String("mapped", mapped.String()),
			slog.String("corrected", canonical.ToolUse.String()),
			slog.Int("tool_count", detection.ToolCount),
			slog.Float64("confidence", detection.Confidence),
		)

	case !detection.HasTools() && mapped == canonical.ToolUse:
		out.Ambiguity = &diag.Ambiguity{
			RequestID:  requestID,
			Declared:   mapped,
			ToolCount:  0,
			Confidence: detection.Confidence,
			Methods:    detection.Methods,
			Detail:     "provider declared tool use without detectable invocations",
			Timestamp:  ts,
		}
	}

	return out
}
