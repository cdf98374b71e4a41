// Package translate turns provider-native response fragments into the
// canonical event stream. Each response gets its own Translator, a small
// state machine that opens and closes content blocks, buffers tool-call
// arguments across fragments, and defers the terminal events until every
// invocation is accounted for. Whether to emit message_stop is a single
// state-transition predicate here, not a scattered conditional.
package translate
