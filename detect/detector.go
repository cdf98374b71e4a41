package detect

import (
	"log/slog"

	"github.com/casualjim/rectify/upstream"
)

const (
	// MethodStructured fired on provider-specific structured tool-call fields.
	MethodStructured = "structured"
	// MethodTextual fired on sliding-window text-pattern matches.
	MethodTextual = "textual"
	// MethodHeuristic fired on keyword and parameter-shape heuristics.
	MethodHeuristic = "heuristic"
	// MethodParseFailure tags a payload the structured strategy could not
	// parse. Diagnostic only; the textual strategies still run.
	MethodParseFailure = "structured:parse-failure"
)

// Config tunes the sliding-window strategy. Zero values fall back to the
// defaults below.
type Config struct {
	WindowSize    int
	WindowOverlap int
	MaxWindows    int
}

const (
	DefaultWindowSize    = 500
	DefaultWindowOverlap = 100
	DefaultMaxWindows    = 20
)

func (c Config) withDefaults() Config {
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	// The overlap must stay strictly below the window size or the scan
	// step goes non-positive; the default overlap can itself be out of
	// range for small windows, so clamp relative to the effective size.
	if c.WindowOverlap < 0 || c.WindowOverlap >= c.WindowSize {
		c.WindowOverlap = min(DefaultWindowOverlap, c.WindowSize/2)
	}
	if c.MaxWindows <= 0 {
		c.MaxWindows = DefaultMaxWindows
	}
	return c
}

// Detector finds tool/function invocation signal in provider payloads.
// It is stateless apart from its configuration: the same input always
// yields the same Result, whether the input is a complete payload or an
// accumulated-so-far partial one.
type Detector struct {
	cfg Config
}

// New returns a Detector with the given window tuning.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Detect inspects a fragment or accumulated payload for tool invocation
// signal. Strategies run in order (structured, textual, heuristic) and
// their results are unioned; confidence is the maximum observed. Malformed
// input never aborts detection: the structured strategy degrades to a
// diagnostic tag and the textual strategies run against the raw bytes.
func (d *Detector) Detect(frag upstream.Fragment) Result {
	if frag.Kind == upstream.KindAbort {
		return Result{}
	}

	result := detectStructured(frag)
	result = result.Union(d.detectTextual(frag))
	result = result.Union(d.detectHeuristic(frag))

	if result.HasTools() {
		slog.Debug("tool invocation signal detected",
			slog.String("provider", frag.Provider.String()),
			slog.Int("tool_count", result.ToolCount),
			slog.Float64("confidence", result.Confidence),
			slog.Any("methods", result.Methods),
		)
	}
	return result
}
