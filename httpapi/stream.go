package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	auth "github.com/goliatone/go-auth"
	"github.com/goliatone/go-profilesync/pkg/authctx"
	"github.com/goliatone/go-profilesync/realtime"
)

// stream forwards the caller's change events over the websocket. The client
// must answer pings; a missed pong closes the stream.
func (h *Handler) stream(conn *websocket.Conn) {
	defer conn.Close()

	actor, _ := conn.Locals(actorLocal).(*auth.ActorContext)
	ref, err := authctx.ActorRefFromActorContext(actor)
	if err != nil {
		h.closeWith(conn, websocket.ClosePolicyViolation, "unauthenticated")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := h.changes.Subscribe(ctx, ref.ID)
	if err != nil {
		h.logger.Error("realtime subscribe failed", err, "user_id", ref.ID)
		h.closeWith(conn, websocket.CloseInternalServerErr, "subscribe failed")
		return
	}
	defer sub.Close()
	h.logger.Debug("realtime stream opened", "user_id", ref.ID)

	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				h.closeWith(conn, websocket.CloseGoingAway, "stream ended")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(realtime.WriteWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("realtime write failed", "user_id", ref.ID, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(realtime.WriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(realtime.WriteWait))
}
