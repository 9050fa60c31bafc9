// Package session owns the authenticated chat connection: it connects,
// persists credential updates, and reconnects after every drop except an
// explicit logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/annabot/internal/config"
	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/events"
	"github.com/soyeahso/annabot/internal/logging"
)

var (
	// ErrLoggedOut is returned by Run when the device was unlinked. The
	// operator has to pair again.
	ErrLoggedOut = errors.New("session: logged out, re-pair the device")
	// ErrNotConnected is returned by Send while the session is not open.
	ErrNotConnected = errors.New("session: not connected")
)

// DefaultAnnounceText is sent to the bot's own chat when a connection opens.
const DefaultAnnounceText = "Bot is now connected and online!"

// CredentialStore persists the session credential record.
type CredentialStore interface {
	Load(ctx context.Context) (domain.Credentials, bool, error)
	Save(ctx context.Context, creds domain.Credentials) error
	Clear(ctx context.Context) error
}

// Config configures a Manager.
type Config struct {
	// ReconnectDelay is the fixed pause before reconnecting. Zero
	// reconnects immediately.
	ReconnectDelay time.Duration
	AnnounceOnline bool
	AnnounceText   string
}

// FromConfig maps the session section of the config file.
func FromConfig(cfg config.SessionConfig) Config {
	return Config{
		ReconnectDelay: cfg.ReconnectDelay(),
		AnnounceOnline: cfg.Announce(),
		AnnounceText:   cfg.AnnounceText,
	}
}

// Manager supervises a domain.Transport.
type Manager struct {
	cfg       Config
	transport domain.Transport
	creds     CredentialStore
	log       *logging.Logger

	mu      sync.RWMutex
	session domain.Session

	// closed holds at most one pending close reason for the loop.
	closed chan domain.DisconnectReason
}

// NewManager creates a session manager. Nothing connects until Run.
func NewManager(cfg Config, transport domain.Transport, creds CredentialStore, log *logging.Logger) *Manager {
	if cfg.AnnounceText == "" {
		cfg.AnnounceText = DefaultAnnounceText
	}
	return &Manager{
		cfg:       cfg,
		transport: transport,
		creds:     creds,
		log:       log.Sub("session"),
		session:   domain.Session{Status: domain.StatusDisconnected},
		closed:    make(chan domain.DisconnectReason, 1),
	}
}

// Wire subscribes the manager to credential and connection events.
func (m *Manager) Wire(bus *events.Bus) {
	bus.On(domain.KindCredentialsUpdated, "session", m.HandleEvent)
	bus.On(domain.KindConnectionUpdate, "session", m.HandleEvent)
}

// Run connects and keeps the session alive until ctx is cancelled or the
// device is logged out. Every close other than a logout triggers exactly
// one reconnect after the configured delay.
func (m *Manager) Run(ctx context.Context) error {
	if creds, ok, err := m.creds.Load(ctx); err != nil {
		m.log.Warn().Err(err).Msg("loading stored credentials failed")
	} else if ok {
		m.mu.Lock()
		m.session.Credentials = creds
		m.mu.Unlock()
		m.log.Info().Str("device", creds.ID).Msg("resuming stored session")
	}

	for {
		// A close left over from the previous connection is stale unless
		// it is a logout.
		select {
		case reason := <-m.closed:
			if reason == domain.ReasonLoggedOut {
				return m.loggedOut(ctx)
			}
		default:
		}

		m.setStatus(domain.StatusConnecting)
		if err := m.transport.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				m.setStatus(domain.StatusClosed)
				return ctx.Err()
			}
			m.log.Warn().Err(err).Msg("connect failed")
			m.signalClosed(domain.ReasonConnectFailed)
		}

		select {
		case <-ctx.Done():
			m.transport.Disconnect()
			m.setStatus(domain.StatusClosed)
			m.log.Info().Msg("session stopped")
			return ctx.Err()

		case reason := <-m.closed:
			if reason == domain.ReasonLoggedOut {
				return m.loggedOut(ctx)
			}
			m.mu.Lock()
			m.session.Status = domain.StatusDisconnected
			m.session.Reconnects++
			attempt := m.session.Reconnects
			m.mu.Unlock()

			m.log.Warn().
				Str("reason", string(reason)).
				Int("attempt", attempt).
				Dur("delay", m.cfg.ReconnectDelay).
				Msg("connection closed, reconnecting")

			if err := sleep(ctx, m.cfg.ReconnectDelay); err != nil {
				m.transport.Disconnect()
				m.setStatus(domain.StatusClosed)
				return err
			}
		}
	}
}

func (m *Manager) loggedOut(ctx context.Context) error {
	m.mu.Lock()
	m.session.Status = domain.StatusClosed
	m.session.Credentials = domain.Credentials{}
	m.mu.Unlock()

	if err := m.creds.Clear(ctx); err != nil {
		m.log.Error().Err(err).Msg("clearing credentials failed")
	}
	m.log.Error().Msg("logged out, pair the device again to continue")
	return ErrLoggedOut
}

// HandleEvent applies credential and connection events. Credential updates
// are persisted before it returns.
func (m *Manager) HandleEvent(ctx context.Context, evt domain.Event) error {
	switch e := evt.(type) {
	case domain.CredentialsUpdated:
		creds := e.Credentials
		if creds.UpdatedAt.IsZero() {
			creds.UpdatedAt = time.Now().UTC()
		}
		m.mu.Lock()
		m.session.Credentials = creds
		m.mu.Unlock()
		if err := m.creds.Save(ctx, creds); err != nil {
			return fmt.Errorf("persisting credentials: %w", err)
		}
		m.log.Debug().Str("device", creds.ID).Msg("credentials saved")

	case domain.ConnectionUpdate:
		switch e.State {
		case domain.ConnectionConnecting:
			m.setStatus(domain.StatusConnecting)
		case domain.ConnectionOpen:
			m.opened(ctx)
		case domain.ConnectionClosed:
			if e.Reason == domain.ReasonLoggedOut {
				m.setStatus(domain.StatusClosed)
			} else {
				m.setStatus(domain.StatusDisconnected)
			}
			log := m.log.Info().Str("reason", string(e.Reason))
			if e.Err != nil {
				log = log.Err(e.Err)
			}
			log.Msg("connection closed")
			m.signalClosed(e.Reason)
		}
	}
	return nil
}

func (m *Manager) opened(ctx context.Context) {
	m.mu.Lock()
	m.session.Status = domain.StatusOpen
	m.session.ConnectedAt = time.Now().UTC()
	m.mu.Unlock()

	self := m.transport.SelfID()
	m.log.Info().Str("self", self).Msg("connection open")

	if !m.cfg.AnnounceOnline || self == "" {
		return
	}
	if err := m.Send(ctx, domain.OutboundMessage{To: self, Body: m.cfg.AnnounceText}); err != nil {
		m.log.Warn().Err(err).Msg("online announcement failed")
	}
}

// signalClosed hands a close reason to the loop without blocking. A logout
// replaces any weaker reason still pending.
func (m *Manager) signalClosed(reason domain.DisconnectReason) {
	for {
		select {
		case m.closed <- reason:
			return
		default:
		}
		if reason != domain.ReasonLoggedOut {
			return
		}
		select {
		case <-m.closed:
		default:
		}
	}
}

// Send delivers msg through the transport. It fails with ErrNotConnected
// unless the session is open.
func (m *Manager) Send(ctx context.Context, msg domain.OutboundMessage) error {
	if m.Status().Status != domain.StatusOpen {
		return ErrNotConnected
	}
	if err := m.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending to %s: %w", msg.To, err)
	}
	return nil
}

// Status returns a snapshot of the session.
func (m *Manager) Status() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Credentials returns the most recent credential bundle.
func (m *Manager) Credentials() domain.Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Credentials
}

// SelfID returns the logged-in account ID, or "" before pairing.
func (m *Manager) SelfID() string {
	return m.transport.SelfID()
}

func (m *Manager) setStatus(status domain.SessionStatus) {
	m.mu.Lock()
	m.session.Status = status
	m.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
