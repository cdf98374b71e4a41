// Package rectify normalizes heterogeneous provider-native chat
// completion payloads into a single canonical, wire-stable event stream.
//
// It does three things the transport layer cannot do on its own:
//
//   - detect tool/function invocations regardless of how an upstream
//     encodes them (structured fields, text patterns, or prose),
//   - correct the upstream's declared termination reason so it is
//     consistent with what actually happened, surfacing every correction
//     as a diagnostic instead of applying it silently,
//   - serialize concurrent requests that share a conversation key, with
//     timeout-based forced recovery, so overlapping completions cannot
//     corrupt client-visible state.
//
// The package composes three independent pieces: the detect package's
// multi-strategy detector, the translate package's per-response state
// machine, and the convoq package's per-conversation queue. Callers
// always receive a well-formed canonical sequence ending in exactly one
// of message_stop or an error event, never an unterminated stream and
// never two terminal signals.
//
// Example:
//
//	r, err := rectify.New(rectify.WithRequestTimeout(60 * time.Second))
//	if err != nil { ... }
//
//	events, err := r.Stream(ctx, convoq.Key{SessionID: "s", ConversationID: "c"}, upstream.OpenAI, fragments)
//	if err != nil { ... }
//	for ev := range events {
//	    switch ev := ev.(type) {
//	    case canonical.ContentBlockDelta:
//	        ...
//	    case canonical.MessageStop:
//	        ...
//	    }
//	}
package rectify
