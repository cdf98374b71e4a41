package translate

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/casualjim/rectify/canonical"
	"github.com/casualjim/rectify/detect"
	"github.com/casualjim/rectify/diag"
	"github.com/casualjim/rectify/pkg/clockx"
	"github.com/casualjim/rectify/upstream"
)

var errIncomplete = errors.New("translation has not terminated")

// Complete translates a single non-streamed payload into an assembled
// canonical response. It is the one-shot equivalent of pushing a final
// fragment through a fresh Translator.
func Complete(ctx context.Context, requestID uuid.UUID, provider upstream.Provider, detector *detect.Detector, hook diag.Hook, clock clockx.Clock, payload []byte) (*canonical.Response, error) {
	t := New(requestID, provider, detector, hook, clock)
	t.Push(ctx, upstream.NewFinal(provider, payload))
	return t.Response()
}
