// Package convoq serializes response processing per conversation: strict
// FIFO admission, at most one request processing per conversation key at
// any instant, and timeout-based forced recovery for stuck requests. The
// per-key queue state is the only resource shared across requests; it is
// owned by the Manager and mutated only through the admit/release
// protocol.
package convoq
