// Package upstream defines the provider-tagged input vocabulary of the
// library: which upstream produced a payload and how it arrived (complete
// object, stream increment, or transport abort). Everything downstream
// consumes fragments; nothing downstream talks to a provider directly.
package upstream
