package detect

import "slices"

// Result is the outcome of one detection call. It is produced fresh per
// call and never mutated afterwards.
type Result struct {
	// ToolCount is the number of distinct tool invocations found.
	ToolCount int
	// Confidence is the maximum confidence over all strategies that fired,
	// in [0,1]. Zero when nothing fired.
	Confidence float64
	// Methods names the strategies that fired, plus diagnostic tags for
	// strategies that degraded on malformed input.
	Methods []string
}

// HasTools reports whether any strategy found at least one invocation.
func (r Result) HasTools() bool { return r.ToolCount > 0 }

// Fired reports whether the named strategy contributed to the result.
func (r Result) Fired(method string) bool {
	return slices.Contains(r.Methods, method)
}

// Union folds another strategy outcome into r. Tool counts take the
// maximum rather than the sum: strategies observe the same invocations
// through different encodings, so adding them would double count.
func (r Result) Union(other Result) Result {
	merged := Result{
		ToolCount:  max(r.ToolCount, other.ToolCount),
		Confidence: max(r.Confidence, other.Confidence),
		Methods:    r.Methods,
	}
	for _, m := range other.Methods {
		if !slices.Contains(merged.Methods, m) {
			merged.Methods = append(merged.Methods, m)
		}
	}
	return merged
}
