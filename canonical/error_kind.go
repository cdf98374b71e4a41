package canonical

// ErrorKind classifies terminal failures surfaced as ErrorEvent. The
// string values are part of the wire contract.
type ErrorKind string

const (
	// MalformedUpstreamPayload: the payload is missing required structural
	// fields for its declared provider.
	MalformedUpstreamPayload ErrorKind = "malformed_upstream_payload"
	// UpstreamAborted: transport-level cancellation mid-stream.
	UpstreamAborted ErrorKind = "upstream_aborted"
	// StuckRequestTimeout: the request exceeded its processing timeout and
	// was force-failed by the queue manager.
	StuckRequestTimeout ErrorKind = "stuck_request_timeout"
	// QueueWaitTimeout: the request exceeded the admission wait timeout.
	QueueWaitTimeout ErrorKind = "queue_wait_timeout"
)

func (k ErrorKind) String() string { return string(k) }
