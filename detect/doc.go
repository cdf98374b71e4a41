// Package detect finds tool/function invocation signal in provider
// payloads, whether the upstream encodes it in structured fields, leaks
// it into text, or merely narrates it. Detection is modeled as
// independent ranked strategies whose results are unioned with explicit
// confidence, so low-confidence matches can be surfaced as diagnostics
// instead of silently forcing behavior changes.
package detect
