package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// DefaultBuffer is the per-subscription event buffer.
const DefaultBuffer = 32

// Hub fans change events out to the subscriptions of their user.
type Hub struct {
	buffer int
	logger types.Logger

	mu   sync.RWMutex
	subs map[uuid.UUID]map[*hubSubscription]struct{}

	dropped atomic.Int64
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithBuffer sets the per-subscription buffer size.
func WithBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.buffer = size
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(logger types.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub constructs an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		buffer: DefaultBuffer,
		logger: types.NopLogger{},
		subs:   make(map[uuid.UUID]map[*hubSubscription]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

var (
	_ Channel               = (*Hub)(nil)
	_ types.ChangePublisher = (*Hub)(nil)
)

// Subscribe registers a subscription that lives until ctx is done or it is
// closed.
func (h *Hub) Subscribe(ctx context.Context, userID uuid.UUID) (Subscription, error) {
	if userID == uuid.Nil {
		return nil, ErrUserIDRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &hubSubscription{
		hub:    h,
		userID: userID,
		events: make(chan types.ChangeEvent, h.buffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*hubSubscription]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.closeWith(ctx.Err())
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Publish delivers event to every subscription of event.UserID. It never
// blocks: a subscription whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, event types.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[event.UserID] {
		if !sub.offer(event) {
			h.dropped.Add(1)
			h.logger.Warn("realtime event dropped", "user_id", event.UserID, "profile", event.Record.Name)
		}
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Dropped returns the number of events lost to slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) remove(sub *hubSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.userID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.userID)
	}
}

type hubSubscription struct {
	hub    *Hub
	userID uuid.UUID
	events chan types.ChangeEvent
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

func (s *hubSubscription) Events() <-chan types.ChangeEvent { return s.events }

func (s *hubSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *hubSubscription) Close() { s.closeWith(ErrClosed) }

func (s *hubSubscription) offer(event types.ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.events <- event:
		return true
	default:
		return false
	}
}

func (s *hubSubscription) closeWith(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	close(s.events)
	close(s.done)
	s.mu.Unlock()

	s.hub.remove(s)
}
