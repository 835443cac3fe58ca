package gamerhub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gamerhub/gamerhub-go/internal/wire"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the transport
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the transport
	pongWait = 60 * time.Second

	// Send pings to the transport with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from the transport
	maxMessageSize = 4096
)

// ChannelKind identifies the kind of realtime channel being joined.
type ChannelKind int

const (
	ChannelKindRoom   ChannelKind = wire.ChannelKindRoom
	ChannelKindDirect ChannelKind = wire.ChannelKindDirect
	ChannelKindGroup  ChannelKind = wire.ChannelKindGroup
)

// ChannelHandle identifies a joined channel.
type ChannelHandle struct {
	ID     string
	Target string
	Kind   ChannelKind
}

// MessageSender identifies the author of a chat message.
type MessageSender struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ChatMessage is a delivered channel message, immutable once created.
type ChatMessage struct {
	ID         string        `json:"id"`
	Sender     MessageSender `json:"sender"`
	Content    string        `json:"content"`
	Timestamp  time.Time     `json:"timestamp"`
	ChannelID  string        `json:"channel_id"`
	Code       int           `json:"code,omitempty"`
	Persistent bool          `json:"persistent,omitempty"`
}

// Socket is the realtime transport client. A Client owns at most one Socket
// and the Socket holds at most one live connection, shared by every channel
// join; the connection is dialed lazily on the first join. Requests carry a
// correlation id and are matched against the server response by that id, so
// a send result is never guessed from timestamps.
type Socket struct {
	client *Client

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *wire.Envelope

	subMu   sync.RWMutex
	subs    map[int]func(ChatMessage)
	nextSub int
}

func newSocket(client *Client) *Socket {
	return &Socket{
		client:  client,
		pending: make(map[string]chan *wire.Envelope),
		subs:    make(map[int]func(ChatMessage)),
	}
}

// Connected reports whether a live connection exists.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Subscribe registers a listener for inbound channel messages and returns
// its unsubscribe function. Any number of independent subscribers may be
// active at once; messages are delivered to each of them in transport order.
func (s *Socket) Subscribe(fn func(ChatMessage)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// JoinChannel joins a named channel, dialing the shared connection first if
// none exists. Requires an authenticated session.
func (s *Socket) JoinChannel(ctx context.Context, target string, kind ChannelKind) (*ChannelHandle, error) {
	if target == "" {
		return nil, fmt.Errorf("channel target is required")
	}

	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	resp, err := s.call(ctx, &wire.Envelope{
		ChannelJoin: &wire.ChannelJoin{
			Target:      target,
			Type:        int(kind),
			Persistence: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("joining channel %q: %w", target, err)
	}
	if resp.Channel == nil {
		return nil, fmt.Errorf("joining channel %q: malformed ack", target)
	}

	s.client.logger.Info("joined channel", "channel_id", resp.Channel.ID, "target", target)
	return &ChannelHandle{ID: resp.Channel.ID, Target: target, Kind: kind}, nil
}

// LeaveChannel leaves a previously joined channel.
func (s *Socket) LeaveChannel(ctx context.Context, channelID string) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	if _, err := s.call(ctx, &wire.Envelope{ChannelLeave: &wire.ChannelLeave{ChannelID: channelID}}); err != nil {
		return fmt.Errorf("leaving channel %q: %w", channelID, err)
	}
	return nil
}

// SendMessage writes a message to a channel and returns it as acknowledged
// by the server. Fails with ErrNotConnected before touching the transport
// when no live connection exists; failed sends are never retried.
func (s *Socket) SendMessage(ctx context.Context, channelID, text string) (*ChatMessage, error) {
	if !s.Connected() {
		return nil, ErrNotConnected
	}

	content, err := json.Marshal(wire.MessageContent{Text: text})
	if err != nil {
		return nil, fmt.Errorf("encoding message content: %w", err)
	}

	resp, err := s.call(ctx, &wire.Envelope{
		ChannelMessageSend: &wire.ChannelMessageSend{
			ChannelID: channelID,
			Content:   string(content),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	if resp.ChannelMessageAck == nil {
		return nil, fmt.Errorf("sending message: malformed ack")
	}

	session := s.client.Session()
	msg := &ChatMessage{
		ID:         resp.ChannelMessageAck.MessageID,
		Content:    text,
		Timestamp:  resp.ChannelMessageAck.CreateTime,
		ChannelID:  resp.ChannelMessageAck.ChannelID,
		Persistent: resp.ChannelMessageAck.Persistent,
	}
	if session.Authenticated() {
		msg.Sender = MessageSender{ID: session.UserID, Username: session.Username}
	}
	return msg, nil
}

// Close tears down the live connection, if any. Pending calls fail with
// ErrNotConnected.
func (s *Socket) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// ensureConnected dials the transport if no live connection exists.
func (s *Socket) ensureConnected(ctx context.Context) error {
	session := s.client.Session()
	if !session.Authenticated() {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	socketURL := s.client.config.SocketURL() + "?token=" + session.Token
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		return fmt.Errorf("dialing realtime transport: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	s.conn = conn
	s.done = done

	go s.readPump(conn, done)
	go s.pingLoop(conn, done)

	s.client.logger.Info("realtime transport connected", "user_id", session.UserID)
	return nil
}

// call writes a correlated request and waits for the matching response.
func (s *Socket) call(ctx context.Context, env *wire.Envelope) (*wire.Envelope, error) {
	s.mu.Lock()
	conn := s.conn
	done := s.done
	s.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	env.CID = uuid.NewString()
	respCh := make(chan *wire.Envelope, 1)
	s.pendingMu.Lock()
	s.pending[env.CID] = respCh
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, env.CID)
		s.pendingMu.Unlock()
	}()

	if err := s.writeEnvelope(conn, env); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, fmt.Errorf("transport error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-done:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Socket) writeEnvelope(conn *websocket.Conn, env *wire.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing to transport: %w", err)
	}
	return nil
}

// readPump reads frames off the connection, routes correlated responses to
// their waiting calls and fans inbound messages out to subscribers.
func (s *Socket) readPump(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		close(done)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.client.logger.Error("realtime transport error", "error", err)
			}
			return
		}

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.client.logger.Warn("invalid envelope from transport", "error", err)
			continue
		}

		if env.CID != "" {
			s.pendingMu.Lock()
			respCh, ok := s.pending[env.CID]
			s.pendingMu.Unlock()
			if ok {
				respCh <- &env
			} else {
				s.client.logger.Debug("response for unknown correlation id", "cid", env.CID)
			}
			continue
		}

		if env.ChannelMessage != nil {
			s.dispatch(env.ChannelMessage)
		}
	}
}

// dispatch unwraps an inbound message envelope and delivers it to every
// subscriber, in the order the transport delivered it.
func (s *Socket) dispatch(msg *wire.ChannelMessage) {
	content := msg.Content
	var wrapped wire.MessageContent
	if err := json.Unmarshal([]byte(msg.Content), &wrapped); err == nil && wrapped.Text != "" {
		content = wrapped.Text
	}

	chatMsg := ChatMessage{
		ID:         msg.MessageID,
		Sender:     MessageSender{ID: msg.SenderID, Username: msg.Username},
		Content:    content,
		Timestamp:  msg.CreateTime,
		ChannelID:  msg.ChannelID,
		Code:       msg.Code,
		Persistent: msg.Persistent,
	}

	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subs {
		fn(chatMsg)
	}
}

// pingLoop keeps the connection alive with periodic pings.
func (s *Socket) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
