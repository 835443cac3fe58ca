package gamerhubtest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gamerhub/gamerhub-go/internal/wire"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In-process test server, any origin is fine
		return true
	},
}

// hub tracks which connections are members of which channels and fans
// messages out to them.
type hub struct {
	server *Server
	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]map[*wsClient]bool
}

func newHub(server *Server, logger *slog.Logger) *hub {
	return &hub{
		server:   server,
		logger:   logger,
		channels: make(map[string]map[*wsClient]bool),
	}
}

func (h *hub) join(channelID string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[channelID]; !ok {
		h.channels[channelID] = make(map[*wsClient]bool)
	}
	h.channels[channelID][c] = true
}

func (h *hub) leave(channelID string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.channels[channelID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, channelID)
		}
	}
}

func (h *hub) member(channelID string, c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channels[channelID][c]
}

func (h *hub) drop(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channelID, members := range h.channels {
		if members[c] {
			delete(members, c)
			if len(members) == 0 {
				delete(h.channels, channelID)
			}
		}
	}
}

// broadcast delivers an envelope to every member of a channel.
func (h *hub) broadcast(channelID string, env *wire.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to marshal envelope", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.channels[channelID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "user_id", c.user.ID)
		}
	}
}

// wsClient is one realtime connection to the fake platform.
type wsClient struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
	user *user
}

// handleWebSocket upgrades a realtime connection. The session token is
// carried in the token query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := s.parseToken(r.URL.Query().Get("token"))
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	s.mu.Lock()
	u := s.users[claims.UserID]
	s.mu.Unlock()
	if u == nil {
		s.writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
		user: u,
	}

	go client.writePump()
	go client.readPump()

	s.logger.Debug("new realtime connection", "user_id", u.ID)
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.drop(c)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Error("websocket error", "error", err)
			}
			return
		}

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.hub.logger.Warn("invalid envelope", "error", err)
			continue
		}

		c.handleEnvelope(&env)
	}
}

func (c *wsClient) handleEnvelope(env *wire.Envelope) {
	switch {
	case env.ChannelJoin != nil:
		channelID := fmt.Sprintf("%d.%s", env.ChannelJoin.Type, env.ChannelJoin.Target)
		c.hub.join(channelID, c)
		c.reply(&wire.Envelope{
			CID: env.CID,
			Channel: &wire.Channel{
				ID:     channelID,
				Target: env.ChannelJoin.Target,
				Type:   env.ChannelJoin.Type,
			},
		})

	case env.ChannelLeave != nil:
		c.hub.leave(env.ChannelLeave.ChannelID, c)
		c.reply(&wire.Envelope{CID: env.CID})

	case env.ChannelMessageSend != nil:
		c.handleMessageSend(env)

	default:
		c.reply(&wire.Envelope{
			CID:   env.CID,
			Error: &wire.Error{Code: 400, Message: "unknown request"},
		})
	}
}

func (c *wsClient) handleMessageSend(env *wire.Envelope) {
	send := env.ChannelMessageSend
	if !c.hub.member(send.ChannelID, c) {
		c.reply(&wire.Envelope{
			CID:   env.CID,
			Error: &wire.Error{Code: 403, Message: "not a member of channel " + send.ChannelID},
		})
		return
	}

	msg := &wire.ChannelMessage{
		ChannelID:  send.ChannelID,
		MessageID:  uuid.NewString(),
		SenderID:   c.user.ID,
		Username:   c.user.Username,
		Content:    send.Content,
		Persistent: true,
		CreateTime: time.Now(),
	}

	// Ack the sender first so its correlated call resolves before the
	// fan-out copy arrives.
	c.reply(&wire.Envelope{
		CID: env.CID,
		ChannelMessageAck: &wire.ChannelMessageAck{
			ChannelID:  msg.ChannelID,
			MessageID:  msg.MessageID,
			CreateTime: msg.CreateTime,
			Persistent: msg.Persistent,
		},
	})

	c.hub.broadcast(send.ChannelID, &wire.Envelope{ChannelMessage: msg})
}

func (c *wsClient) reply(env *wire.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.hub.logger.Error("failed to marshal reply", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("client buffer full, dropping reply", "user_id", c.user.ID)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
