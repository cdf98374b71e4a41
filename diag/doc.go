// Package diag carries the structured lifecycle and diagnostic events of
// the library: termination-reason corrections, ambiguous detection
// signal, and stuck-request cleanups. These events never enter the
// canonical response stream; they are delivered to a Hook so operators
// can observe every correction the library makes, with before/after
// values, instead of having behavior change silently.
package diag
