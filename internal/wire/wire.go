// Package wire defines the JSON envelopes exchanged over the realtime
// transport. Exactly one payload field is set per envelope; the cid ties a
// response back to the request that carried it.
package wire

import "time"

// Channel kinds understood by the transport
const (
	ChannelKindRoom   = 1
	ChannelKindDirect = 2
	ChannelKindGroup  = 3
)

// Envelope is a single realtime frame.
type Envelope struct {
	CID string `json:"cid,omitempty"`

	ChannelJoin        *ChannelJoin        `json:"channel_join,omitempty"`
	ChannelLeave       *ChannelLeave       `json:"channel_leave,omitempty"`
	Channel            *Channel            `json:"channel,omitempty"`
	ChannelMessageSend *ChannelMessageSend `json:"channel_message_send,omitempty"`
	ChannelMessageAck  *ChannelMessageAck  `json:"channel_message_ack,omitempty"`
	ChannelMessage     *ChannelMessage     `json:"channel_message,omitempty"`
	Error              *Error              `json:"error,omitempty"`
}

// ChannelJoin asks the transport to join a named channel.
type ChannelJoin struct {
	Target      string `json:"target"`
	Type        int    `json:"type"`
	Persistence bool   `json:"persistence"`
}

// ChannelLeave asks the transport to leave a channel.
type ChannelLeave struct {
	ChannelID string `json:"channel_id"`
}

// Channel acknowledges a join with the server-assigned channel id.
type Channel struct {
	ID     string `json:"id"`
	Target string `json:"target,omitempty"`
	Type   int    `json:"type,omitempty"`
}

// ChannelMessageSend writes a message envelope to a channel.
type ChannelMessageSend struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// ChannelMessageAck confirms a send with the server-assigned message id.
type ChannelMessageAck struct {
	ChannelID  string    `json:"channel_id"`
	MessageID  string    `json:"message_id"`
	CreateTime time.Time `json:"create_time"`
	Persistent bool      `json:"persistent"`
}

// ChannelMessage is an inbound message delivered to channel members.
type ChannelMessage struct {
	ChannelID  string    `json:"channel_id"`
	MessageID  string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	Username   string    `json:"username"`
	Content    string    `json:"content"`
	Code       int       `json:"code"`
	Persistent bool      `json:"persistent"`
	CreateTime time.Time `json:"create_time"`
}

// Error reports a failed request back to its sender.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MessageContent is the content payload carried inside a channel message.
type MessageContent struct {
	Text string `json:"text"`
}
