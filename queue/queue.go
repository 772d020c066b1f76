package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// Config wires a Queue.
type Config struct {
	Store       Store
	Transport   Transport
	Clock       types.Clock
	Logger      types.Logger
	IDGenerator types.IDGenerator
	MaxAttempts int
	Backoff     Backoff
	// OnStuck is invoked when a mutation becomes stuck.
	OnStuck func(Mutation)
}

// FlushResult summarizes one flush pass.
type FlushResult struct {
	Acknowledged []Mutation
	Stuck        []Mutation
	// Stopped reports the pass ended early on a transient failure or on a
	// mutation still waiting for its retry time.
	Stopped   bool
	RetryAt   time.Time
	LastError error
	Remaining int
}

// Queue buffers mutations durably and replays them through a Transport.
type Queue struct {
	store       Store
	transport   Transport
	clock       types.Clock
	logger      types.Logger
	ids         types.IDGenerator
	maxAttempts int
	backoff     Backoff
	onStuck     func(Mutation)

	flushMu sync.Mutex

	mu             sync.Mutex
	inFlight       uuid.UUID
	discardPending bool
}

// New constructs a queue.
func New(cfg Config) (*Queue, error) {
	if cfg.Store == nil {
		return nil, ErrMissingStore
	}
	if cfg.Transport == nil {
		return nil, ErrMissingTransport
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	ids := cfg.IDGenerator
	if ids == nil {
		ids = types.UUIDGenerator{}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Queue{
		store:       cfg.Store,
		transport:   cfg.Transport,
		clock:       clock,
		logger:      logger,
		ids:         ids,
		maxAttempts: maxAttempts,
		backoff:     cfg.Backoff,
		onStuck:     cfg.OnStuck,
	}, nil
}

// Enqueue appends m to the durable queue. Storage failures are returned to
// the caller, the mutation is never silently dropped.
func (q *Queue) Enqueue(ctx context.Context, m Mutation) (Mutation, error) {
	if err := m.normalize(); err != nil {
		return Mutation{}, err
	}
	now := q.clock.Now()
	m.ID = q.ids.UUID()
	m.Status = StatusPending
	m.Attempts = 0
	m.LastError = ""
	m.NextAttemptAt = time.Time{}
	m.CreatedAt = now
	m.UpdatedAt = now

	stored, err := q.store.Append(ctx, m)
	if err != nil {
		q.logger.Error("queue append failed", err, "kind", m.Kind, "profiles", m.Names())
		return Mutation{}, err
	}
	q.logger.Debug("mutation queued", "id", stored.ID, "seq", stored.Seq, "profiles", stored.Names())
	return stored, nil
}

// Flush replays queued mutations in Seq order. A mutation is removed only
// after the transport acknowledges it. A transient failure, or a mutation
// still in backoff, stops the pass so nothing is sent out of order. Stuck
// mutations hold back later mutations naming any of the same profiles only.
// Concurrent calls are serialized.
func (q *Queue) Flush(ctx context.Context) (FlushResult, error) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	var result FlushResult
	if _, err := q.store.ResetInFlight(ctx, q.clock.Now()); err != nil {
		return result, err
	}
	entries, err := q.store.List(ctx)
	if err != nil {
		return result, err
	}

	blocked := make(profileSet)
	for _, m := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		names := m.Names()
		if m.Status == StatusStuck || blocked.any(names) {
			// a held back mutation holds back every profile it names
			blocked.add(names)
			continue
		}
		if !m.retryable() {
			continue
		}
		if now := q.clock.Now(); m.NextAttemptAt.After(now) {
			result.Stopped = true
			result.RetryAt = m.NextAttemptAt
			break
		}

		claimed, err := q.claim(ctx, m.ID)
		if err != nil {
			return result, err
		}
		if !claimed {
			continue
		}

		sendErr := q.transport.Send(ctx, m)
		outcome, err := q.settle(ctx, m, sendErr)
		if err != nil {
			return result, err
		}
		switch outcome.Status {
		case StatusAcknowledged:
			result.Acknowledged = append(result.Acknowledged, outcome)
		case StatusStuck:
			blocked.add(names)
			result.Stuck = append(result.Stuck, outcome)
		case StatusFailed, StatusPending:
			result.Stopped = true
			result.RetryAt = outcome.NextAttemptAt
			result.LastError = sendErr
		}
		if result.Stopped {
			break
		}
	}

	remaining, err := q.store.Count(ctx)
	if err != nil {
		return result, err
	}
	result.Remaining = remaining
	return result, nil
}

type profileSet map[string]bool

func (s profileSet) add(names []string) {
	for _, name := range names {
		s[name] = true
	}
}

func (s profileSet) any(names []string) bool {
	for _, name := range names {
		if s[name] {
			return true
		}
	}
	return false
}

func (q *Queue) claim(ctx context.Context, id uuid.UUID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	claimed, err := q.store.Claim(ctx, id, q.clock.Now())
	if err != nil || !claimed {
		return false, err
	}
	q.inFlight = id
	q.discardPending = false
	return true, nil
}

// settle records the transport outcome of an in-flight mutation.
func (q *Queue) settle(ctx context.Context, m Mutation, sendErr error) (Mutation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	discard := q.discardPending
	q.inFlight = uuid.Nil
	q.discardPending = false

	now := q.clock.Now()
	m.UpdatedAt = now

	if sendErr == nil {
		if _, err := q.store.Delete(ctx, m.ID); err != nil {
			return m, err
		}
		m.Status = StatusAcknowledged
		q.logger.Debug("mutation acknowledged", "id", m.ID, "seq", m.Seq)
		return m, nil
	}
	if discard {
		if _, err := q.store.Delete(ctx, m.ID); err != nil {
			return m, err
		}
		m.Status = StatusPending
		m.LastError = sendErr.Error()
		return m, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(sendErr, ctxErr) {
		m.Status = StatusPending
		m.LastError = sendErr.Error()
		// the caller's context is done, so persist with a fresh one
		return m, q.store.Update(context.WithoutCancel(ctx), m)
	}

	m.Attempts++
	m.LastError = sendErr.Error()
	switch {
	case errors.Is(sendErr, ErrPermanent):
		m.Status = StatusStuck
		m.NextAttemptAt = time.Time{}
	case m.Attempts >= q.maxAttempts:
		m.Status = StatusStuck
		m.NextAttemptAt = time.Time{}
	default:
		m.Status = StatusFailed
		m.NextAttemptAt = now.Add(q.backoff.Delay(m.Attempts))
	}
	if err := q.store.Update(ctx, m); err != nil {
		return m, err
	}
	if m.Status == StatusStuck {
		q.logger.Warn("mutation stuck", "id", m.ID, "seq", m.Seq, "attempts", m.Attempts, "error", m.LastError)
		if q.onStuck != nil {
			q.onStuck(m)
		}
	} else {
		q.logger.Debug("mutation failed, backing off", "id", m.ID, "attempts", m.Attempts, "retry_at", m.NextAttemptAt)
	}
	return m, nil
}

// Clear discards every mutation that has not been acknowledged and returns
// how many were removed. It is safe to call during a flush: the mutation in
// flight is left to the flush, which drops it once the transport answers
// unless the transport accepted it. That mutation is not part of the count.
func (q *Queue) Clear(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed, err := q.store.DeleteUnclaimed(ctx)
	if err != nil {
		return 0, err
	}
	pending := q.inFlight != uuid.Nil
	if pending {
		q.discardPending = true
	}
	q.logger.Info("queue cleared", "removed", removed, "in_flight_pending", pending)
	return removed, nil
}

// Size returns the number of mutations not yet acknowledged.
func (q *Queue) Size(ctx context.Context) (int, error) {
	return q.store.Count(ctx)
}

// Pending returns every queued mutation in Seq order.
func (q *Queue) Pending(ctx context.Context) ([]Mutation, error) {
	return q.store.List(ctx)
}

// Stuck returns the mutations waiting for a user decision.
func (q *Queue) Stuck(ctx context.Context) ([]Mutation, error) {
	entries, err := q.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Mutation, 0)
	for _, m := range entries {
		if m.Status == StatusStuck {
			out = append(out, m)
		}
	}
	return out, nil
}

// Retry returns a stuck mutation to pending with a fresh attempt budget.
func (q *Queue) Retry(ctx context.Context, id uuid.UUID) (Mutation, error) {
	m, err := q.store.Get(ctx, id)
	if err != nil {
		return Mutation{}, err
	}
	if m == nil {
		return Mutation{}, ErrMutationNotFound
	}
	if m.Status == StatusInFlight {
		return Mutation{}, ErrMutationInFlight
	}
	m.Status = StatusPending
	m.Attempts = 0
	m.LastError = ""
	m.NextAttemptAt = time.Time{}
	m.UpdatedAt = q.clock.Now()
	if err := q.store.Update(ctx, *m); err != nil {
		return Mutation{}, err
	}
	return *m, nil
}

// Discard removes a single queued mutation.
func (q *Queue) Discard(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == id {
		return ErrMutationInFlight
	}
	removed, err := q.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return ErrMutationNotFound
	}
	return nil
}
