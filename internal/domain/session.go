package domain

import "time"

// SessionStatus is the lifecycle state of the transport session.
type SessionStatus string

const (
	StatusDisconnected SessionStatus = "disconnected"
	StatusConnecting   SessionStatus = "connecting"
	StatusOpen         SessionStatus = "open"
	StatusClosed       SessionStatus = "closed"
)

// Credentials is the persisted record of the paired device. The key
// material itself lives in the transport's device store.
type Credentials struct {
	ID        string    `json:"id"`
	PushName  string    `json:"pushName,omitempty"`
	Platform  string    `json:"platform,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Paired reports whether the credentials identify a paired device.
func (c Credentials) Paired() bool { return c.ID != "" }

// Session is the authenticated connection owned by the session manager.
type Session struct {
	Status      SessionStatus `json:"status"`
	Credentials Credentials   `json:"credentials"`
	ConnectedAt time.Time     `json:"connectedAt,omitempty"`
	Reconnects  int           `json:"reconnects"`
}
