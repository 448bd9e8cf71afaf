package ws

import (
	"errors"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kiwari-pos/console/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be below pongWait
	maxMessageSize = 512
	sendBuffer     = 256
)

var errSessionEnded = errors.New("admin session ended")

// SessionChecker reports whether an admin session is still live.
type SessionChecker func(id uuid.UUID) bool

// Client is one browser tab subscribed to an admin session's events.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID uuid.UUID
	live      SessionChecker
	send      chan []byte
}

// ReadPump keeps the connection's read deadline fresh and unregisters the
// client when the tab goes away. The browser sends nothing but pongs. A pong
// arriving after the session expired or was logged out ends the connection.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.live != nil && !c.live(c.sessionID) {
			return errSessionEnded
		}
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARNING: websocket session %s: %v", c.sessionID, err)
			}
			return
		}
	}
}

// WritePump sends each queued event as its own text frame so every frame is
// one JSON document, and pings on pingPeriod. A closed send channel means the
// hub dropped the client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades GET /ws?token=JWT for a live admin session and joins the
// connection to that session's room.
type Handler struct {
	hub       *Hub
	jwtSecret string
	live      SessionChecker
	upgrader  websocket.Upgrader
}

// NewHandler creates a Handler. Upgrades are accepted from allowedOrigins
// only; requests without an Origin header (non-browser clients) pass.
func NewHandler(hub *Hub, jwtSecret string, live SessionChecker, allowedOrigins []string) *Handler {
	return &Handler{
		hub:       hub,
		jwtSecret: jwtSecret,
		live:      live,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(h.jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if !h.live(claims.SessionID) {
		http.Error(w, "session expired", http.StatusUnauthorized)
		return
	}

	// Upgrade writes its own 403 on an origin mismatch.
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARNING: websocket upgrade for session %s: %v", claims.SessionID, err)
		return
	}

	client := &Client{
		hub:       h.hub,
		conn:      conn,
		sessionID: claims.SessionID,
		live:      h.live,
		send:      make(chan []byte, sendBuffer),
	}
	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
