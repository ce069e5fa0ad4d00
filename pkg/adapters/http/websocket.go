package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	wsBufferSize   = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is exchanged on the WebSocket. Clients send {"type":"turn"};
// the server answers with "turn" or "error", and pushes "diff" messages
// for turns taken on the session through any transport.
type WSMessage struct {
	Type     string          `json:"type"`
	Input    string          `json:"input,omitempty"`
	Error    string          `json:"error,omitempty"`
	Response *TurnResponse   `json:"response,omitempty"`
	Diff     json.RawMessage `json:"diff,omitempty"`
}

type wsClient struct {
	server    *Server
	conn      *websocket.Conn
	sessionID string
}

// HandleWebSocket handles GET /sessions/{id}/ws.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	c := &wsClient{server: s, conn: conn, sessionID: sessionID}
	go c.run()
}

func (c *wsClient) run() {
	defer func() { _ = c.conn.Close() }()

	diffs, unsubscribe := c.server.Streams.Subscribe(c.sessionID)
	defer unsubscribe()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, 16)
	go c.readMessages(incoming)

	for {
		select {
		case message, ok := <-incoming:
			if !ok {
				return
			}
			if !c.handle(message) {
				return
			}

		case diff, ok := <-diffs:
			if !ok {
				return
			}
			if !c.send(WSMessage{Type: "diff", Diff: json.RawMessage(diff)}) {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readMessages(incoming chan<- []byte) {
	defer close(incoming)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		incoming <- message
	}
}

func (c *wsClient) handle(message []byte) bool {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return c.send(WSMessage{Type: "error", Error: "invalid message"})
	}
	if msg.Type != "turn" {
		return c.send(WSMessage{Type: "error", Error: "unknown message type " + msg.Type})
	}

	resp, _, err := c.server.turn(context.Background(), c.sessionID, msg.Input)
	if err != nil {
		return c.send(WSMessage{Type: "error", Error: err.Error(), Response: resp})
	}
	return c.send(WSMessage{Type: "turn", Response: resp})
}

func (c *wsClient) send(msg WSMessage) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.server.logger.Warn("websocket write failed", "session_id", c.sessionID, "err", err)
		return false
	}
	return true
}
