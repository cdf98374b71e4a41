package convoq

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/casualjim/rectify/diag"
	"github.com/casualjim/rectify/pkg/clockx"
	"github.com/casualjim/rectify/pkg/slogx"
)

const (
	// DefaultRequestTimeout bounds how long one admitted request may hold
	// its conversation's slot before it is force-failed.
	DefaultRequestTimeout = 60 * time.Second
	// DefaultQueueWait bounds how long a caller waits for admission before
	// a cleanup pass runs.
	DefaultQueueWait = 30 * time.Second
)

var (
	// ErrStuckRequestTimeout is delivered (as a context cancellation
	// cause) to a request that exceeded the processing timeout.
	ErrStuckRequestTimeout = errors.New("request exceeded processing timeout")
	// ErrQueueWaitTimeout is returned by Admit when the queue cannot make
	// progress for this caller even after cleanup.
	ErrQueueWaitTimeout = errors.New("timed out waiting for queue admission")
)

// Manager serializes requests per conversation Key: strict FIFO admission
// with at most one request processing per Key at any instant, and
// timeout-based forced recovery so one stuck request cannot wedge its
// conversation forever. The admit/release protocol itself is the
// single-writer discipline; callers never lock anything.
type Manager struct {
	conversations  *haxmap.Map[string, *conversation]
	clock          clockx.Clock
	requestTimeout time.Duration
	queueWait      time.Duration
	hook           diag.Hook
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock substitutes the wall clock; tests use a fake.
func WithClock(clock clockx.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(m *Manager) { m.requestTimeout = d }
}

// WithQueueWait overrides DefaultQueueWait.
func WithQueueWait(d time.Duration) Option {
	return func(m *Manager) { m.queueWait = d }
}

// WithHook delivers stuck-request diagnostics.
func WithHook(hook diag.Hook) Option {
	return func(m *Manager) { m.hook = hook }
}

// New builds a Manager.
func New(options ...Option) *Manager {
	m := &Manager{
		conversations:  haxmap.New[string, *conversation](),
		clock:          clockx.Real(),
		requestTimeout: DefaultRequestTimeout,
		queueWait:      DefaultQueueWait,
		hook:           diag.NoopHook{},
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

type conversation struct {
	key Key

	mu         sync.Mutex
	waiters    []*entry
	processing *entry
}

type entry struct {
	requestID  uuid.UUID
	enqueuedAt time.Time
	startedAt  time.Time
	ready      chan struct{}
	ctx        context.Context
	cancel     context.CancelCauseFunc
}

// Lease is the caller's hold on its conversation slot. Its context is
// cancelled (with the failure as cause) when the request is force-failed,
// so the holder observes its own timeout rather than the next-in-line.
type Lease struct {
	manager   *Manager
	conv      *conversation
	entry     *entry
	startedAt time.Time
	once      sync.Once
}

// Context is cancelled when the lease is released or force-failed. Check
// context.Cause to distinguish ErrStuckRequestTimeout from a release.
func (l *Lease) Context() context.Context { return l.entry.ctx }

// RequestID identifies the admitted request.
func (l *Lease) RequestID() uuid.UUID { return l.entry.requestID }

// Release frees the conversation slot and unblocks the next queued entry
// for the key. Safe to call more than once; dropping a lease without
// calling Release is treated as failure and recovered by the processing
// timeout.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.conv.mu.Lock()
		if l.conv.processing == l.entry {
			l.conv.processing = nil
			l.conv.grantLocked(l.manager.clock.Now())
		}
		l.conv.mu.Unlock()
		l.entry.cancel(nil)
		slog.Debug("queue slot released",
			slogx.Stringer("request_id", l.entry.requestID),
			slog.String("conversation", l.conv.key.String()),
		)
	})
}

func (m *Manager) conversation(key Key) *conversation {
	conv, _ := m.conversations.GetOrCompute(key.String(), func() *conversation {
		return &conversation{key: key}
	})
	return conv
}

// grantLocked pops the head of the FIFO into the processing slot. Caller
// holds conv.mu.
func (c *conversation) grantLocked(now time.Time) {
	if c.processing != nil || len(c.waiters) == 0 {
		return
	}
	head := c.waiters[0]
	c.waiters = c.waiters[1:]
	c.processing = head
	head.startedAt = now
	close(head.ready)
}

// Admit suspends the caller until it is this request's turn for the key.
// While waiting, every queueWait interval a cleanup pass force-fails any
// processing entry that exceeded the request timeout; the waiter then
// either proceeds (slot freed) or keeps waiting until the current
// processing entry's own deadline, whichever is sooner.
func (m *Manager) Admit(ctx context.Context, key Key, requestID uuid.UUID) (*Lease, error) {
	conv := m.conversation(key)

	ectx, cancel := context.WithCancelCause(ctx)
	e := &entry{
		requestID:  requestID,
		enqueuedAt: m.clock.Now(),
		ready:      make(chan struct{}),
		ctx:        ectx,
		cancel:     cancel,
	}

	conv.mu.Lock()
	conv.waiters = append(conv.waiters, e)
	conv.grantLocked(m.clock.Now())
	conv.mu.Unlock()

	wait := m.queueWait
	for {
		select {
		case <-e.ready:
			lease := &Lease{manager: m, conv: conv, entry: e, startedAt: e.startedAt}
			go m.watch(conv, e)
			slog.Debug("request admitted",
				slogx.Stringer("request_id", requestID),
				slog.String("conversation", key.String()),
				slogx.Elapsed("queued", e.startedAt.Sub(e.enqueuedAt)),
			)
			return lease, nil

		case <-ctx.Done():
			m.abandon(conv, e)
			cancel(ctx.Err())
			return nil, ctx.Err()

		case <-m.clock.After(wait):
			m.ForceCleanup(key)

			conv.mu.Lock()
			granted := conv.processing == e
			var remaining time.Duration
			if !granted && conv.processing != nil {
				deadline := conv.processing.startedAt.Add(m.requestTimeout)
				remaining = deadline.Sub(m.clock.Now())
			}
			conv.mu.Unlock()

			if granted {
				continue
			}
			if remaining > 0 {
				// The head-of-line request is still within its budget; wait
				// it out (or a regular release) rather than failing a caller
				// the queue can still serve.
				wait = min(m.queueWait, remaining)
				continue
			}
			m.abandon(conv, e)
			cancel(ErrQueueWaitTimeout)
			return nil, ErrQueueWaitTimeout
		}
	}
}

// abandon removes e from the queue, or frees the slot if e was granted in
// a race with the caller giving up.
func (m *Manager) abandon(conv *conversation, e *entry) {
	conv.mu.Lock()
	defer conv.mu.Unlock()
	if conv.processing == e {
		conv.processing = nil
		conv.grantLocked(m.clock.Now())
		return
	}
	conv.waiters = slices.DeleteFunc(conv.waiters, func(w *entry) bool { return w == e })
}

// watch force-fails the entry when it exceeds the processing timeout.
// Release cancels the entry context, which also stops the watcher.
func (m *Manager) watch(conv *conversation, e *entry) {
	select {
	case <-e.ctx.Done():
	case <-m.clock.After(m.requestTimeout):
		m.forceFail(conv, e)
	}
}

// forceFail frees the slot held by e and delivers ErrStuckRequestTimeout
// to e's own caller. It never touches other conversations and never
// punishes the next-in-line. Reports whether e actually held the slot;
// false means the holder released it first and nothing was reclaimed.
func (m *Manager) forceFail(conv *conversation, e *entry) bool {
	now := m.clock.Now()

	conv.mu.Lock()
	if conv.processing != e {
		conv.mu.Unlock()
		return false
	}
	conv.processing = nil
	elapsed := now.Sub(e.startedAt)
	conv.grantLocked(now)
	conv.mu.Unlock()

	e.cancel(ErrStuckRequestTimeout)
	m.hook.OnStuckRequestsCleaned(e.ctx, diag.StuckRequestsCleaned{
		SessionID:      conv.key.SessionID,
		ConversationID: conv.key.ConversationID,
		Cleaned: []diag.CleanedEntry{
			{RequestID: e.requestID, Elapsed: elapsed},
		},
		Timestamp: strfmt.DateTime(now),
	})
	slog.Warn("force-failed stuck request",
		slogx.Stringer("request_id", e.requestID),
		slog.String("conversation", conv.key.String()),
		slogx.Elapsed("elapsed", elapsed),
	)
	return true
}

// ForceCleanup force-fails any processing entry for the key whose elapsed
// processing time exceeds the request timeout, freeing the slot for the
// next queued entry. It returns the request IDs that were cleaned.
func (m *Manager) ForceCleanup(key Key) []uuid.UUID {
	conv, ok := m.conversations.Get(key.String())
	if !ok {
		return nil
	}

	conv.mu.Lock()
	p := conv.processing
	now := m.clock.Now()
	stuck := p != nil && now.Sub(p.startedAt) > m.requestTimeout
	conv.mu.Unlock()

	if !stuck {
		return nil
	}
	// The stuck check and the reclaim are separate critical sections; the
	// holder may release in between, in which case nothing was cleaned.
	if !m.forceFail(conv, p) {
		return nil
	}
	return []uuid.UUID{p.requestID}
}
