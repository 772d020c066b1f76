package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// DefaultReconnectDelay is the wait before resubscribing after a timeout.
const DefaultReconnectDelay = 5 * time.Second

// NotifierConfig wires a Notifier.
type NotifierConfig struct {
	Channel        Channel
	ReconnectDelay time.Duration
	Logger         types.Logger
}

// Notifier keeps one change subscription alive for a client session.
type Notifier struct {
	channel Channel
	delay   time.Duration
	logger  types.Logger

	mu         sync.Mutex
	userID     uuid.UUID
	onChange   func(types.ChangeEvent)
	subscribed bool
	active     bool
	dialing    bool
	sub        Subscription
	cancel     context.CancelFunc
	reconnect  *time.Timer
	generation uint64
}

// NewNotifier constructs a notifier over cfg.Channel.
func NewNotifier(cfg NotifierConfig) (*Notifier, error) {
	if cfg.Channel == nil {
		return nil, ErrMissingChannel
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Notifier{channel: cfg.Channel, delay: delay, logger: logger}, nil
}

// Subscribe starts delivering the changes of userID to onChange. A previous
// subscription is replaced. onChange runs on the notifier's own goroutine.
// When the channel cannot be reached the error is returned and the notifier
// stays subscribed, waiting for NetworkOnline.
func (n *Notifier) Subscribe(userID uuid.UUID, onChange func(types.ChangeEvent)) error {
	if userID == uuid.Nil {
		return ErrUserIDRequired
	}
	n.mu.Lock()
	n.teardownLocked()
	n.userID = userID
	n.onChange = onChange
	n.subscribed = true
	d, _ := n.beginDialLocked()
	n.mu.Unlock()
	return n.connect(d)
}

// Unsubscribe ends the subscription. It is safe to call repeatedly.
func (n *Notifier) Unsubscribe() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.teardownLocked()
	n.subscribed = false
	n.onChange = nil
}

// Stop is an alias of Unsubscribe used on shutdown.
func (n *Notifier) Stop() { n.Unsubscribe() }

// NetworkOnline resubscribes immediately when the subscription is down and
// no dial is already in progress.
func (n *Notifier) NetworkOnline() {
	n.mu.Lock()
	d, ok := n.beginDialLocked()
	if ok {
		n.stopTimerLocked()
	}
	n.mu.Unlock()
	if !ok {
		return
	}
	if err := n.connect(d); err != nil && !errors.Is(err, ErrClosed) {
		n.logger.Warn("realtime resubscribe failed", "user_id", d.userID, "error", err)
	}
}

// Active reports whether a subscription is currently established.
func (n *Notifier) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// dial is one subscribe attempt started under n.mu and run without it.
type dial struct {
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
	userID     uuid.UUID
}

// beginDialLocked claims the right to dial. Teardown cancels the dial's
// context, so Unsubscribe aborts a handshake still in progress.
func (n *Notifier) beginDialLocked() (dial, bool) {
	if !n.subscribed || n.active || n.dialing {
		return dial{}, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.dialing = true
	n.cancel = cancel
	return dial{ctx: ctx, cancel: cancel, generation: n.generation, userID: n.userID}, true
}

// connect runs the dial without holding n.mu and installs the subscription
// only when nothing superseded the attempt meanwhile.
func (n *Notifier) connect(d dial) error {
	if d.ctx == nil {
		return ErrClosed
	}
	sub, err := n.channel.Subscribe(d.ctx, d.userID)

	n.mu.Lock()
	defer n.mu.Unlock()
	if d.generation != n.generation || !n.subscribed {
		d.cancel()
		if err == nil {
			sub.Close()
		}
		return ErrClosed
	}
	n.dialing = false
	if err != nil {
		d.cancel()
		n.cancel = nil
		n.active = false
		if isTimeout(err) {
			n.scheduleLocked()
		}
		return err
	}
	n.generation++
	n.sub = sub
	n.active = true
	go n.pump(n.generation, sub)
	n.logger.Debug("realtime subscribed", "user_id", d.userID)
	return nil
}

func (n *Notifier) pump(generation uint64, sub Subscription) {
	for event := range sub.Events() {
		if handler := n.handler(generation); handler != nil {
			handler(event)
		}
	}
	n.lost(generation, sub.Err())
}

func (n *Notifier) handler(generation uint64) func(types.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if generation != n.generation || !n.subscribed {
		return nil
	}
	return n.onChange
}

func (n *Notifier) lost(generation uint64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if generation != n.generation || !n.subscribed {
		return
	}
	n.active = false
	n.sub = nil
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	if isTimeout(err) {
		n.logger.Info("realtime subscription timed out, reconnecting", "user_id", n.userID, "delay", n.delay)
		n.scheduleLocked()
		return
	}
	n.logger.Warn("realtime subscription lost", "user_id", n.userID, "error", err)
}

// scheduleLocked arms a single reconnect; pending reconnects are not stacked.
func (n *Notifier) scheduleLocked() {
	if n.reconnect != nil {
		return
	}
	generation := n.generation
	n.reconnect = time.AfterFunc(n.delay, func() {
		n.mu.Lock()
		n.reconnect = nil
		if generation != n.generation {
			n.mu.Unlock()
			return
		}
		d, ok := n.beginDialLocked()
		n.mu.Unlock()
		if !ok {
			return
		}
		if err := n.connect(d); err != nil && !errors.Is(err, ErrClosed) {
			n.logger.Warn("realtime reconnect failed", "user_id", d.userID, "error", err)
		}
	})
}

func (n *Notifier) stopTimerLocked() {
	if n.reconnect != nil {
		n.reconnect.Stop()
		n.reconnect = nil
	}
}

func (n *Notifier) teardownLocked() {
	n.stopTimerLocked()
	n.generation++
	if n.sub != nil {
		n.sub.Close()
		n.sub = nil
	}
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.active = false
	n.dialing = false
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
