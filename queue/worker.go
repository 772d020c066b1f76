package queue

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
)

// Worker flushes a queue in the background whenever it is notified and when
// a failed mutation becomes due.
type Worker struct {
	queue    *Queue
	logger   types.Logger
	interval time.Duration
	onFlush  func(FlushResult, error)

	signal chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

// WithPollInterval flushes on a fixed interval in addition to notifications.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.interval = d }
}

// WithFlushObserver receives every flush outcome.
func WithFlushObserver(fn func(FlushResult, error)) WorkerOption {
	return func(w *Worker) { w.onFlush = fn }
}

// NewWorker builds a worker for q.
func NewWorker(q *Queue, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:  q,
		logger: q.logger,
		signal: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Notify requests a flush. It never blocks; notifications that arrive while
// one is already pending are coalesced.
func (w *Worker) Notify() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Start launches the background loop. Calling Start twice is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
	w.Notify()
}

// Stop halts the loop and waits for an in-progress flush to return.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	retry := time.NewTimer(time.Hour)
	retry.Stop()
	defer retry.Stop()

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.signal:
		case <-retry.C:
		case <-tick:
		}

		result, err := w.queue.Flush(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("queue flush failed", err)
		}
		if w.onFlush != nil {
			w.onFlush(result, err)
		}
		if !result.RetryAt.IsZero() {
			wait := time.Until(result.RetryAt)
			if wait < 0 {
				wait = 0
			}
			retry.Reset(wait)
		}
	}
}
