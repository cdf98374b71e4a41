package detect

import (
	"regexp"
	"strings"

	"github.com/casualjim/rectify/upstream"
)

// Parameter-shape heuristic: a name followed by a parenthesized run of at
// least two key: value pairs, the way models narrate calls they cannot
// emit structurally.
var kvRunPattern = regexp.MustCompile(`\w+\s*\(\s*\w+\s*:\s*[^,()]+(?:\s*,\s*\w+\s*:\s*[^,()]+)+\s*\)`)

// Prose markers that raise suspicion without proving anything.
var heuristicKeywords = []string{
	"calling tool",
	"invoking tool",
	"calling function",
	"invoking function",
}

// detectHeuristic applies keyword and parameter-shape heuristics. These
// only raise suspicion: the reconciler treats sub-structured confidence as
// grounds for a warning diagnostic, never for a silent behavior change.
func (d *Detector) detectHeuristic(frag upstream.Fragment) Result {
	text := extractText(frag)
	if text == "" {
		return Result{}
	}

	runs := kvRunPattern.FindAllStringIndex(text, -1)
	if len(runs) > 0 {
		return Result{
			ToolCount:  len(runs),
			Confidence: 0.7,
			Methods:    []string{MethodHeuristic},
		}
	}

	lower := strings.ToLower(text)
	for _, kw := range heuristicKeywords {
		if strings.Contains(lower, kw) {
			return Result{
				ToolCount:  1,
				Confidence: 0.5,
				Methods:    []string{MethodHeuristic},
			}
		}
	}
	return Result{}
}
