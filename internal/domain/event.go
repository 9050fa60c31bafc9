package domain

import "time"

// ConnectionState is reported by ConnectionUpdate events.
type ConnectionState string

const (
	ConnectionConnecting ConnectionState = "connecting"
	ConnectionOpen       ConnectionState = "open"
	ConnectionClosed     ConnectionState = "closed"
)

// DisconnectReason explains a ConnectionClosed update. Only ReasonLoggedOut
// is terminal.
type DisconnectReason string

const (
	ReasonLoggedOut        DisconnectReason = "logged_out"
	ReasonConnectionLost   DisconnectReason = "connection_lost"
	ReasonConnectFailed    DisconnectReason = "connect_failed"
	ReasonStreamReplaced   DisconnectReason = "stream_replaced"
	ReasonKeepAliveTimeout DisconnectReason = "keepalive_timeout"
	ReasonClientShutdown   DisconnectReason = "client_shutdown"
	ReasonUnknown          DisconnectReason = "unknown"
)

// Event is one of the notifications a Transport publishes.
type Event interface {
	Kind() string
}

// CredentialsUpdated is published whenever the transport changes the
// device credentials (pairing, push name change).
type CredentialsUpdated struct {
	Credentials Credentials
}

// ConnectionUpdate is published on connection state transitions.
type ConnectionUpdate struct {
	State  ConnectionState
	Reason DisconnectReason
	Err    error
}

// MessageReceived carries one inbound message.
type MessageReceived struct {
	Message InboundMessage
}

// PairingCode carries a QR payload to be shown to the operator.
type PairingCode struct {
	Code    string
	Timeout time.Duration
}

const (
	KindCredentialsUpdated = "credentials_updated"
	KindConnectionUpdate   = "connection_update"
	KindMessageReceived    = "message_received"
	KindPairingCode        = "pairing_code"
)

func (CredentialsUpdated) Kind() string { return KindCredentialsUpdated }
func (ConnectionUpdate) Kind() string   { return KindConnectionUpdate }
func (MessageReceived) Kind() string    { return KindMessageReceived }
func (PairingCode) Kind() string        { return KindPairingCode }
