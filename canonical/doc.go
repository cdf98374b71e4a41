// Package canonical defines the provider-independent output vocabulary of
// the library: the tagged union of stream events, the stop-reason and
// error-kind enums, and the assembled Response object for non-streaming
// callers.
//
// The JSON encodings are part of the wire contract and are constructed
// with sjson against pre-allocated type markers so the field layout stays
// bit-stable across releases. Callers always receive a well-formed event
// sequence ending in exactly one of message_stop or error, never an
// unterminated stream and never two terminal signals.
package canonical
