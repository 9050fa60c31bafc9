// Package whatsapp implements domain.Transport on the whatsmeow
// multi-device client.
package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"

	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/logging"
)

// Config configures the WhatsApp transport.
type Config struct {
	// DeviceStore is the sqlite file holding the device keys.
	DeviceStore string
	// OSName is shown in the phone's linked devices list.
	OSName string
	// LogLevel applies to the protocol client's own logs.
	LogLevel string
}

// Client implements domain.Transport.
type Client struct {
	cfg    Config
	db     *sql.DB
	client *whatsmeow.Client
	log    *logging.Logger

	mu      sync.RWMutex
	handler func(domain.Event)

	groupsMu sync.Mutex
	groups   map[types.JID]string
}

// Open loads (or creates) the device store and prepares a client. It does
// not connect.
func Open(ctx context.Context, cfg Config, log *logging.Logger) (*Client, error) {
	if cfg.OSName != "" {
		store.DeviceProps.Os = proto.String(cfg.OSName)
	}

	db, err := sql.Open("sqlite", "file:"+cfg.DeviceStore+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening device store: %w", err)
	}

	protoLog := log.Sub("whatsmeow")
	if cfg.LogLevel != "" {
		protoLog = protoLog.WithLevel(cfg.LogLevel)
	}
	container := sqlstore.NewWithDB(db, "sqlite3", logging.WhatsApp(protoLog, "Database"))
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("upgrading device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading device: %w", err)
	}

	c := &Client{
		cfg:    cfg,
		db:     db,
		client: whatsmeow.NewClient(device, logging.WhatsApp(protoLog, "Client")),
		log:    log.Sub("whatsapp"),
		groups: make(map[types.JID]string),
	}
	// Reconnects are owned by the session manager.
	c.client.EnableAutoReconnect = false
	c.client.AddEventHandler(c.handle)
	return c, nil
}

// OnEvent registers the handler that receives every transport event.
func (c *Client) OnEvent(handler func(domain.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Connect opens the websocket. An unpaired device gets a QR channel whose
// codes are published as PairingCode events.
func (c *Client) Connect(ctx context.Context) error {
	if c.client.Store.ID == nil {
		qr, err := c.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("requesting pairing codes: %w", err)
		}
		go c.forwardPairing(qr)
	}

	c.emit(domain.ConnectionUpdate{State: domain.ConnectionConnecting})
	c.log.Info().Bool("paired", c.client.Store.ID != nil).Msg("connecting to WhatsApp")
	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp connect: %w", err)
	}
	return nil
}

// Disconnect closes the websocket.
func (c *Client) Disconnect() {
	c.client.Disconnect()
}

// Close disconnects and releases the device store.
func (c *Client) Close() error {
	c.client.Disconnect()
	return c.db.Close()
}

// Send delivers a text message, quoting msg.Quote when set.
func (c *Client) Send(ctx context.Context, msg domain.OutboundMessage) error {
	to, err := types.ParseJID(msg.To)
	if err != nil {
		return fmt.Errorf("whatsapp: invalid destination %q: %w", msg.To, err)
	}
	resp, err := c.client.SendMessage(ctx, to, outboundMessage(msg))
	if err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}
	c.log.Debug().
		Str("to", msg.To).
		Str("id", string(resp.ID)).
		Bool("quoted", msg.Quote != nil).
		Msg("message sent")
	return nil
}

// SelfID returns the logged-in account, or "" before pairing.
func (c *Client) SelfID() string {
	return jidString(c.client.Store.ID)
}

// Paired reports whether the device store holds a linked device.
func (c *Client) Paired() bool {
	return c.client.Store.ID != nil
}

func (c *Client) credentials() domain.Credentials {
	return domain.Credentials{
		ID:        c.client.Store.ID.String(),
		PushName:  c.client.Store.PushName,
		Platform:  c.client.Store.Platform,
		UpdatedAt: time.Now().UTC(),
	}
}

func (c *Client) emit(evt domain.Event) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h != nil {
		h(evt)
	}
}

// handle is the whatsmeow event handler.
func (c *Client) handle(raw any) {
	switch evt := raw.(type) {
	case *events.Message:
		msg := inboundFrom(evt)
		if msg.IsGroup() {
			msg.ChatName = c.groupName(evt.Info.Chat)
		}
		c.emit(domain.MessageReceived{Message: msg})
		return

	case *events.PairSuccess:
		c.log.Info().Str("device", evt.ID.String()).Str("platform", evt.Platform).Msg("device paired")
		c.emit(domain.CredentialsUpdated{Credentials: domain.Credentials{
			ID:        evt.ID.String(),
			PushName:  c.client.Store.PushName,
			Platform:  evt.Platform,
			UpdatedAt: time.Now().UTC(),
		}})
		return

	case *events.PushNameSetting:
		if c.client.Store.ID != nil {
			c.emit(domain.CredentialsUpdated{Credentials: c.credentials()})
		}
		return

	case *events.KeepAliveTimeout:
		c.log.Warn().Int("errors", evt.ErrorCount).Time("lastSuccess", evt.LastSuccess).Msg("keepalive timeout")
		if evt.ErrorCount >= maxKeepAliveFailures {
			c.client.Disconnect()
			c.emit(domain.ConnectionUpdate{State: domain.ConnectionClosed, Reason: domain.ReasonKeepAliveTimeout})
		}
		return
	}

	if update, ok := connectionUpdateFrom(raw); ok {
		if update.State == domain.ConnectionOpen && c.client.Store.ID != nil {
			c.emit(domain.CredentialsUpdated{Credentials: c.credentials()})
		}
		c.emit(update)
	}
}

// maxKeepAliveFailures is how many missed keepalives count as a dead link.
const maxKeepAliveFailures = 3

func (c *Client) forwardPairing(qr <-chan whatsmeow.QRChannelItem) {
	for item := range qr {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			c.emit(domain.PairingCode{Code: item.Code, Timeout: item.Timeout})
		case whatsmeow.QRChannelSuccess.Event:
			c.log.Info().Msg("pairing complete")
		case whatsmeow.QRChannelTimeout.Event:
			c.log.Warn().Msg("pairing timed out")
			c.emit(domain.ConnectionUpdate{State: domain.ConnectionClosed, Reason: domain.ReasonConnectFailed})
		default:
			c.log.Warn().Str("event", item.Event).Err(item.Error).Msg("pairing failed")
		}
	}
}

// groupName returns the cached subject of a group, fetching it once.
func (c *Client) groupName(jid types.JID) string {
	c.groupsMu.Lock()
	name, ok := c.groups[jid]
	c.groupsMu.Unlock()
	if ok {
		return name
	}

	info, err := c.groupInfo(jid)
	if err != nil {
		c.log.Debug().Err(err).Str("group", jid.String()).Msg("group info unavailable")
		return ""
	}
	c.groupsMu.Lock()
	c.groups[jid] = info.Name
	c.groupsMu.Unlock()
	return info.Name
}
