package canonical

// StopReason is the canonical, provider-independent vocabulary for why a
// response ended. The string values are part of the wire contract and
// must not change.
type StopReason string

const (
	EndTurn      StopReason = "end_turn"
	MaxTokens    StopReason = "max_tokens"
	ToolUse      StopReason = "tool_use"
	StopSequence StopReason = "stop_sequence"
)

func (s StopReason) String() string { return string(s) }

// Known reports whether s is one of the canonical values.
func (s StopReason) Known() bool {
	switch s {
	case EndTurn, MaxTokens, ToolUse, StopSequence:
		return true
	}
	return false
}
