package diag

import (
	"context"
	"log/slog"

	"github.com/casualjim/rectify/pkg/slogx"
)

// Hook receives diagnostic events as they happen. Implementations must
// not block: hooks run on the translation path.
type Hook interface {
	OnCorrection(context.Context, Correction)
	OnAmbiguity(context.Context, Ambiguity)
	OnStuckRequestsCleaned(context.Context, StuckRequestsCleaned)
}

// NoopHook discards all diagnostics.
type NoopHook struct{}

func (NoopHook) OnCorrection(context.Context, Correction)                     {}
func (NoopHook) OnAmbiguity(context.Context, Ambiguity)                       {}
func (NoopHook) OnStuckRequestsCleaned(context.Context, StuckRequestsCleaned) {}

// SlogHook writes diagnostics to the default slog logger. Corrections and
// cleanups log at warn; ambiguities at warn as well since they flag signal
// the reconciler chose not to act on.
type SlogHook struct{}

func (SlogHook) OnCorrection(_ context.Context, c Correction) {
	slog.Warn("stop reason corrected",
		slogx.Stringer("request_id", c.RequestID),
		slogx.Stringer("original", c.Original),
		slogx.Stringer("corrected", c.Corrected),
		slog.Int("tool_count", c.ToolCount),
		slog.Float64("confidence", c.Confidence),
	)
}

func (SlogHook) OnAmbiguity(_ context.Context, a Ambiguity) {
	slog.Warn("ambiguous detection signal",
		slogx.Stringer("request_id", a.RequestID),
		slogx.Stringer("declared", a.Declared),
		slog.Int("tool_count", a.ToolCount),
		slog.Float64("confidence", a.Confidence),
		slog.Any("methods", a.Methods),
		slog.String("detail", a.Detail),
	)
}

func (SlogHook) OnStuckRequestsCleaned(_ context.Context, s StuckRequestsCleaned) {
	ids := make([]string, len(s.Cleaned))
	for i, entry := range s.Cleaned {
		ids[i] = entry.RequestID.String()
	}
	slog.Warn("stuck requests cleaned",
		slog.String("session_id", s.SessionID),
		slog.String("conversation_id", s.ConversationID),
		slog.Any("request_ids", ids),
	)
}
