package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// demo: aceita qualquer origem
	CheckOrigin: func(r *http.Request) bool { return true },
}

// frame é o envelope trocado no socket: {"event": "...", "data": ...}.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// wsConn adapta uma conexão gorilla/websocket para ratelimit.Conn.
type wsConn struct {
	id      string
	addr    string
	subject ratelimit.Subject

	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) ID() string                 { return c.id }
func (c *wsConn) RemoteAddr() string         { return c.addr }
func (c *wsConn) Subject() ratelimit.Subject { return c.subject }

func (c *wsConn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(frame{Event: event, Data: data})
}

func wsHandler(guard *ratelimit.EventGuard, logger *slog.Logger) http.HandlerFunc {
	handlers := map[string]ratelimit.EventHandler{
		"message": guard.Wrap("message", domain.ActionWrite, func(ctx context.Context, c ratelimit.Conn, payload []byte) error {
			return c.Emit("message:ack", map[string]any{"size": len(payload)})
		}),
		"typing": guard.Wrap("typing", domain.ActionRead, func(ctx context.Context, c ratelimit.Conn, payload []byte) error {
			return nil
		}),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		conn := &wsConn{
			id:      uuid.NewString(),
			addr:    r.RemoteAddr,
			subject: ratelimit.SubjectFromContext(r.Context()),
			ws:      ws,
		}
		defer func() {
			guard.Disconnect(conn)
			_ = ws.Close()
		}()

		for {
			var f frame
			if err := ws.ReadJSON(&f); err != nil {
				return
			}
			h, ok := handlers[f.Event]
			if !ok {
				_ = conn.Emit(ratelimit.ErrorEvent, ratelimit.SocketError{Code: "unknown_event", Message: "unknown event"})
				continue
			}
			if err := h(r.Context(), conn, f.Data); err != nil {
				logger.Warn("socket handler failed", "conn", conn.ID(), "event", f.Event, "error", err)
			}
		}
	}
}
