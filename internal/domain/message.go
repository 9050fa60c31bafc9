package domain

import (
	"strings"
	"time"
)

// ChatType classifies the conversation context.
type ChatType string

const (
	ChatTypeDM    ChatType = "dm"
	ChatTypeGroup ChatType = "group"
)

// StatusBroadcastID is the pseudo-chat WhatsApp uses for status updates.
const StatusBroadcastID = "status@broadcast"

// Content holds the text-bearing payload variants of a received message.
// Non-text payloads (stickers, audio, reactions) leave every field empty.
type Content struct {
	Conversation string `json:"conversation,omitempty"`
	ExtendedText string `json:"extendedText,omitempty"`
	ImageCaption string `json:"imageCaption,omitempty"`
}

// Text returns the first variant with non-whitespace content: plain body,
// extended/quoted body, then image caption. Whitespace-only variants are
// skipped, so a blank body with a caption yields the caption.
func (c Content) Text() string {
	for _, s := range []string{c.Conversation, c.ExtendedText, c.ImageCaption} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// InboundMessage is a message received from the transport.
type InboundMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	FromName  string    `json:"fromName,omitempty"`
	FromMe    bool      `json:"fromMe,omitempty"`
	ChatID    string    `json:"chatId"`
	ChatName  string    `json:"chatName,omitempty"`
	ChatType  ChatType  `json:"chatType"`
	Content   Content   `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Raw       any       `json:"-"`
}

// IsGroup reports whether the message was posted in a group chat.
func (m InboundMessage) IsGroup() bool { return m.ChatType == ChatTypeGroup }

// IsBroadcast reports whether the message belongs to the status broadcast.
func (m InboundMessage) IsBroadcast() bool { return m.ChatID == StatusBroadcastID }

// SenderName returns the display name, falling back to the sender ID.
func (m InboundMessage) SenderName() string {
	if m.FromName != "" {
		return m.FromName
	}
	return m.From
}

// OutboundMessage is a reply to be sent through the transport.
type OutboundMessage struct {
	To    string          `json:"to"`
	Body  string          `json:"body"`
	Quote *InboundMessage `json:"quote,omitempty"`
}
