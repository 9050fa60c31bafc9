package domain

import "context"

// Transport is the chat network client the session manager drives.
type Transport interface {
	// Connect establishes a session using stored or fresh credentials.
	// Events are delivered to the handler registered with OnEvent.
	Connect(ctx context.Context) error

	// Disconnect closes the current connection, if any.
	Disconnect()

	// Send delivers a text message, quoting msg.Quote when set.
	Send(ctx context.Context, msg OutboundMessage) error

	// SelfID returns the identifier of the logged-in account, or "" before pairing.
	SelfID() string

	// OnEvent registers the handler that receives every transport event.
	OnEvent(handler func(Event))
}
