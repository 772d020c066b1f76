package realtime

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Websocket keepalive timings shared by the server endpoint and WSChannel.
const (
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second
	WriteWait    = 10 * time.Second
)

// WSChannel subscribes to the server change stream over a websocket. The
// server derives the user from the bearer token, userID only guards against
// subscribing on behalf of nobody.
type WSChannel struct {
	URL      string
	Token    func(ctx context.Context) (string, error)
	Dialer   *websocket.Dialer
	ReadWait time.Duration
	Buffer   int
}

var _ Channel = (*WSChannel)(nil)

// Subscribe dials the endpoint and starts reading events.
func (c *WSChannel) Subscribe(ctx context.Context, userID uuid.UUID) (Subscription, error) {
	if userID == uuid.Nil {
		return nil, ErrUserIDRequired
	}
	header := http.Header{}
	if c.Token != nil {
		token, err := c.Token(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, c.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if isNetTimeout(err) {
			return nil, errors.Join(ErrTimeout, err)
		}
		return nil, err
	}

	wait := c.ReadWait
	if wait <= 0 {
		wait = PongWait
	}
	buffer := c.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &wsSubscription{
		conn:   conn,
		wait:   wait,
		events: make(chan types.ChangeEvent, buffer),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(WriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	go sub.read()
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

type wsSubscription struct {
	conn   *websocket.Conn
	wait   time.Duration
	events chan types.ChangeEvent
	done   chan struct{}
	closed chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	closing   bool
	err       error
}

func (s *wsSubscription) Events() <-chan types.ChangeEvent { return s.events }

func (s *wsSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *wsSubscription) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		close(s.closed)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(WriteWait))
		_ = s.conn.Close()
	})
}

func (s *wsSubscription) read() {
	defer close(s.done)
	defer close(s.events)
	for {
		var event types.ChangeEvent
		if err := s.conn.ReadJSON(&event); err != nil {
			s.finish(err)
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.wait))
		if !event.Type.Valid() {
			continue
		}
		select {
		case s.events <- event:
		case <-s.closed:
			s.finish(ErrClosed)
			return
		}
	}
}

func (s *wsSubscription) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closing:
		s.err = ErrClosed
	case isNetTimeout(err):
		s.err = errors.Join(ErrTimeout, err)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		s.err = errors.Join(ErrClosed, err)
	default:
		s.err = err
	}
	_ = s.conn.Close()
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
