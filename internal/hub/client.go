package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 4096
)

var (
	heartbeatMessage = []byte(`{"type":"heartbeat"}`)
	pongMessage      = []byte(`{"type":"pong"}`)
)

// ClientConfig tunes the keepalive cycle for one connection. A peer that
// shows no activity (pong or any message) within PingInterval+PongGrace is
// disconnected and removed from the subscriber set.
type ClientConfig struct {
	PingInterval time.Duration
	PongGrace    time.Duration
}

func (c ClientConfig) pongWait() time.Duration {
	return c.PingInterval + c.PongGrace
}

// ServeConn subscribes the upgraded connection to topic and runs its pumps.
// initial, when non-nil, is written before any streamed message so a new
// subscriber starts with a full view. Blocks until the connection closes,
// then releases the subscription.
func (h *Hub) ServeConn(conn *websocket.Conn, topic Topic, initial []byte, cfg ClientConfig) {
	sub := h.Subscribe(topic)
	go h.writePump(conn, sub, initial, cfg)
	h.readPump(conn, sub, cfg)
}

// readPump consumes inbound frames. Client pings get a JSON pong; anything
// unrecognized is ignored. All writes stay on the write pump, inbound
// handling only enqueues.
func (h *Hub) readPump(conn *websocket.Conn, sub *Subscription, cfg ClientConfig) {
	defer func() {
		h.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(cfg.pongWait()))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.pongWait()))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Debug("websocket read ended")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(cfg.pongWait()))

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			h.Send(sub, pongMessage)
		}
	}
}

// writePump owns all writes to the connection: the initial snapshot, the
// subscription stream, and the keepalive ping plus heartbeat frame.
func (h *Hub) writePump(conn *websocket.Conn, sub *Subscription, initial []byte, cfg ClientConfig) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		h.Unsubscribe(sub)
		conn.Close()
	}()

	if initial != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
			return
		}
	}

	for {
		select {
		case payload, ok := <-sub.ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub dropped us or the handler shut down
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, heartbeatMessage); err != nil {
				return
			}
		}
	}
}
