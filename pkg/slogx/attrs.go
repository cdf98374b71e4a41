package slogx

import (
	"fmt"
	"log/slog"
	"time"
)

// Error returns a slog.Attr for the provided error under the "error" key.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Stringer returns a slog.Attr with the string representation of the
// given fmt.Stringer value. Useful for enums and IDs that implement
// fmt.Stringer.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// Elapsed returns a slog.Attr for a duration rendered in milliseconds,
// the unit used by the timeout configuration.
func Elapsed(key string, d time.Duration) slog.Attr {
	return slog.Int64(key, d.Milliseconds())
}
