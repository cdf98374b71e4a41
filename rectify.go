package rectify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fogfish/opts"
	"github.com/google/uuid"

	"github.com/casualjim/rectify/canonical"
	"github.com/casualjim/rectify/convoq"
	"github.com/casualjim/rectify/detect"
	"github.com/casualjim/rectify/pkg/slogx"
	"github.com/casualjim/rectify/pkg/uuidx"
	"github.com/casualjim/rectify/translate"
	"github.com/casualjim/rectify/upstream"
)

// Reconciler is the composition root: queue admission at the front,
// per-response translation behind it. One Reconciler serves any number of
// concurrent requests; ordering is only constrained within a conversation
// key.
type Reconciler struct {
	cfg      Config
	queue    *convoq.Manager
	detector *detect.Detector
}

// New builds a Reconciler.
func New(options ...opts.Option[Config]) (*Reconciler, error) {
	cfg := defaultConfig()
	if err := opts.Apply(&cfg, options); err != nil {
		return nil, err
	}

	return &Reconciler{
		cfg: cfg,
		queue: convoq.New(
			convoq.WithClock(cfg.Clock),
			convoq.WithRequestTimeout(cfg.RequestTimeout),
			convoq.WithQueueWait(cfg.QueueWait),
			convoq.WithHook(cfg.Hook),
		),
		detector: detect.New(detect.Config{
			WindowSize:    cfg.WindowSize,
			WindowOverlap: cfg.WindowOverlap,
			MaxWindows:    cfg.MaxWindows,
		}),
	}, nil
}

// Stream admits the request for its conversation key, then translates the
// fragment stream into canonical events. The returned channel always
// delivers a well-formed sequence ending in exactly one of message_stop
// or error, and is closed afterwards.
func (r *Reconciler) Stream(ctx context.Context, key convoq.Key, provider upstream.Provider, fragments <-chan upstream.Fragment) (<-chan canonical.Event, error) {
	requestID := uuidx.New()

	lease, err := r.queue.Admit(ctx, key, requestID)
	if err != nil {
		return nil, admissionError(err)
	}

	events := make(chan canonical.Event, 10)
	go func() {
		defer close(events)
		defer lease.Release()
		r.run(lease.Context(), requestID, provider, fragments, events)
	}()
	return events, nil
}

// run drives one translator over the fragment stream. The lease context
// doubles as the failure signal: force-failure by the queue manager
// cancels it with the timeout as cause.
func (r *Reconciler) run(ctx context.Context, requestID uuid.UUID, provider upstream.Provider, fragments <-chan upstream.Fragment, events chan<- canonical.Event) {
	t := translate.New(requestID, provider, r.detector, r.cfg.Hook, r.cfg.Clock)

	// Sends are bounded by the context: a consumer that stops draining
	// must not pin the goroutine past its own force-fail cancellation.
	emit := func(evs []canonical.Event) bool {
		for _, ev := range evs {
			select {
			case events <- ev:
			case <-ctx.Done():
				return true
			}
		}
		return t.State().Done()
	}

	for {
		select {
		case frag, hasMore := <-fragments:
			if !hasMore {
				emit(t.Push(ctx, upstream.Fragment{Provider: provider, Final: true}))
				return
			}
			if emit(t.Push(ctx, frag)) {
				return
			}

		case <-ctx.Done():
			cause := context.Cause(ctx)
			kind := canonical.UpstreamAborted
			if errors.Is(cause, convoq.ErrStuckRequestTimeout) {
				kind = canonical.StuckRequestTimeout
				slog.Warn("request force-failed while streaming",
					slogx.Stringer("request_id", requestID),
					slogx.Error(cause),
				)
			}
			emit(t.Fail(kind, cause.Error()))
			return
		}
	}
}

// Complete admits the request, then translates a single non-streamed
// payload into an assembled canonical response.
func (r *Reconciler) Complete(ctx context.Context, key convoq.Key, provider upstream.Provider, payload []byte) (*canonical.Response, error) {
	requestID := uuidx.New()

	lease, err := r.queue.Admit(ctx, key, requestID)
	if err != nil {
		return nil, admissionError(err)
	}
	defer lease.Release()

	return translate.Complete(lease.Context(), requestID, provider, r.detector, r.cfg.Hook, r.cfg.Clock, payload)
}

// admissionError maps queue admission failures onto the canonical error
// taxonomy, so streaming and non-streaming callers see one vocabulary.
func admissionError(err error) error {
	if errors.Is(err, convoq.ErrQueueWaitTimeout) {
		return canonical.ErrorEvent{Kind: canonical.QueueWaitTimeout, Detail: err.Error()}
	}
	return err
}

// ForceCleanup force-fails any stuck processing entry for the key. It is
// also run automatically when queue waits exceed the configured timeout.
func (r *Reconciler) ForceCleanup(key convoq.Key) []uuid.UUID {
	return r.queue.ForceCleanup(key)
}
