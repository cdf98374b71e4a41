package translate

// State is the per-response lifecycle. The single transition predicate
// below is what decides "may a terminal event be emitted now"; there is
// deliberately no boolean flag checked anywhere else.
type State uint8

const (
	// Streaming is the default state: consuming fragments, emitting deltas.
	Streaming State = iota
	// ToolPending means the detector has reported at least one invocation
	// for this response; tool-shaped fragments are routed into argument
	// buffers.
	ToolPending
	// Terminating means the upstream signalled completion and every open
	// invocation is finalized; the reconciler runs exactly once here.
	Terminating
	// Terminated means the terminal event was emitted. No further
	// fragments are processed.
	Terminated
	// Errored is the failure terminal state, reachable from any other
	// state. The single ErrorEvent is itself the terminal signal; no
	// message_stop follows it.
	Errored
)

var stateNames = map[State]string{
	Streaming:   "streaming",
	ToolPending: "tool_pending",
	Terminating: "terminating",
	Terminated:  "terminated",
	Errored:     "errored",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Done reports whether the state is terminal.
func (s State) Done() bool { return s == Terminated || s == Errored }
