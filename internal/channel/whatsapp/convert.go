package whatsapp

import (
	"fmt"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/soyeahso/annabot/internal/domain"
)

// contentOf pulls the text-bearing variants out of a message. Anything
// else (stickers, audio, reactions) yields empty content.
func contentOf(msg *waE2E.Message) domain.Content {
	return domain.Content{
		Conversation: msg.GetConversation(),
		ExtendedText: msg.GetExtendedTextMessage().GetText(),
		ImageCaption: msg.GetImageMessage().GetCaption(),
	}
}

// inboundFrom converts a received message. ChatName is left for the
// caller, since resolving a group subject needs a network round trip.
func inboundFrom(evt *events.Message) domain.InboundMessage {
	info := evt.Info
	chatType := domain.ChatTypeDM
	if info.IsGroup {
		chatType = domain.ChatTypeGroup
	}
	return domain.InboundMessage{
		ID:        string(info.ID),
		From:      info.Sender.ToNonAD().String(),
		FromName:  info.PushName,
		FromMe:    info.IsFromMe,
		ChatID:    info.Chat.String(),
		ChatType:  chatType,
		Content:   contentOf(evt.Message),
		Timestamp: info.Timestamp,
		Raw:       evt,
	}
}

// outboundMessage builds the wire message for a reply. Quoted replies use
// an extended text message whose context points at the original.
func outboundMessage(msg domain.OutboundMessage) *waE2E.Message {
	if msg.Quote == nil {
		return &waE2E.Message{Conversation: proto.String(msg.Body)}
	}

	quoted := &waE2E.Message{Conversation: proto.String(msg.Quote.Content.Text())}
	if raw, ok := msg.Quote.Raw.(*events.Message); ok && raw.Message != nil {
		quoted = raw.Message
	}

	return &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(msg.Body),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:      proto.String(msg.Quote.ID),
				Participant:   proto.String(msg.Quote.From),
				QuotedMessage: quoted,
			},
		},
	}
}

// connectionUpdateFrom maps the library's connection events. ok is false
// for events that do not change the connection state.
func connectionUpdateFrom(evt any) (domain.ConnectionUpdate, bool) {
	closed := func(reason domain.DisconnectReason) (domain.ConnectionUpdate, bool) {
		return domain.ConnectionUpdate{State: domain.ConnectionClosed, Reason: reason}, true
	}
	switch e := evt.(type) {
	case *events.Connected:
		return domain.ConnectionUpdate{State: domain.ConnectionOpen}, true
	case *events.LoggedOut:
		return closed(domain.ReasonLoggedOut)
	case *events.Disconnected:
		return closed(domain.ReasonConnectionLost)
	case *events.StreamReplaced:
		return closed(domain.ReasonStreamReplaced)
	case *events.ConnectFailure:
		update, _ := closed(domain.ReasonConnectFailed)
		update.Err = connectFailureError{reason: e.Reason, message: e.Message}
		return update, true
	case *events.TemporaryBan, *events.ClientOutdated, *events.StreamError:
		return closed(domain.ReasonUnknown)
	}
	return domain.ConnectionUpdate{}, false
}

type connectFailureError struct {
	reason  events.ConnectFailureReason
	message string
}

func (e connectFailureError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("connect failure %d: %s", int(e.reason), e.message)
	}
	return fmt.Sprintf("connect failure %d", int(e.reason))
}

// jidString renders a possibly nil JID without its device part.
func jidString(jid *types.JID) string {
	if jid == nil || jid.IsEmpty() {
		return ""
	}
	return jid.ToNonAD().String()
}
