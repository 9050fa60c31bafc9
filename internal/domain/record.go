package domain

import "time"

// MessageRecord is a persisted history line for a conversation.
type MessageRecord struct {
	ChatType   ChatType  `json:"chatType"`
	ChatID     string    `json:"chatId"`
	ChatName   string    `json:"chatName,omitempty"`
	SenderID   string    `json:"senderId,omitempty"`
	SenderName string    `json:"senderName,omitempty"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Line renders the record for prompt interpolation. Group lines are
// attributed to their sender.
func (r MessageRecord) Line() string {
	if r.ChatType != ChatTypeGroup {
		return r.Text
	}
	return attribute(r.SenderName, r.SenderID, r.Text)
}

// MemoryRecord is a remembered fact scoped to a conversation.
type MemoryRecord struct {
	ChatType   ChatType  `json:"chatType"`
	ChatID     string    `json:"chatId"`
	ChatName   string    `json:"chatName,omitempty"`
	SenderID   string    `json:"senderId,omitempty"`
	SenderName string    `json:"senderName,omitempty"`
	Memory     string    `json:"memory"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Line renders the memory for prompt interpolation.
func (r MemoryRecord) Line() string {
	if r.ChatType != ChatTypeGroup {
		return r.Memory
	}
	return attribute(r.SenderName, r.SenderID, r.Memory)
}

func attribute(name, id, text string) string {
	if name == "" {
		name = id
	}
	return name + ": " + text
}
