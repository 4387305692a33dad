package stamps

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum size of an inbound frame.
	maxMessageSize = 64 * 1024
)

// Handler upgrades HTTP requests to websocket channels and wires them into
// the hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler. allowedOrigins works like the CORS
// setting: "*" accepts any Origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker builds the upgrader's Origin policy.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin.
		return origin == "" || set[strings.ToLower(origin)]
	}
}

// Connect handles GET /ws. It serves the channel until the client goes away.
func (h *Handler) Connect(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written an error response.
		slog.Warn("websocket upgrade failed",
			slog.String("remote_ip", c.RealIP()),
			slog.Any("error", err),
		)
		return nil
	}

	ch := NewChannel(c.RealIP())
	id := h.hub.Register(ch)
	slog.Info("channel connected",
		slog.String("channel_id", id),
		slog.String("remote_addr", ch.RemoteAddr),
	)

	go h.writeLoop(ws, ch)
	h.readLoop(c.Request().Context(), ws, ch)
	return nil
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, ch *Channel) {
	defer func() {
		h.hub.Unregister(ch.ID)
		ws.Close()
		slog.Info("channel disconnected",
			slog.String("channel_id", ch.ID),
			slog.Duration("connected_for", time.Since(ch.ConnectedAt)),
		)
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				slog.Warn("channel read failed",
					slog.String("channel_id", ch.ID),
					slog.Any("error", err),
				)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Debug("ignoring non-JSON frame", slog.String("channel_id", ch.ID))
			continue
		}
		if env.Event != EventSend {
			continue
		}
		if err := h.hub.Relay(ctx, Message(env.Data), ch); err != nil {
			slog.Warn("relay failed",
				slog.String("channel_id", ch.ID),
				slog.Any("error", err),
			)
		}
	}
}

func (h *Handler) writeLoop(ws *websocket.Conn, ch *Channel) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		// Break readLoop.
		ws.Close()
	}()

	for {
		select {
		case frame, ok := <-ch.Outbound():
			if !ok {
				// Unregistered, evicted or shutting down.
				wsWrite(ws, websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := wsWrite(ws, websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			if err := wsWrite(ws, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Writes a message with the given message type (mt) and payload.
func wsWrite(ws *websocket.Conn, mt int, payload []byte) error {
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(mt, payload)
}
