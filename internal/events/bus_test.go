package events

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/logging"
	"github.com/stretchr/testify/assert"
)

func testBus() *Bus {
	return NewBus(logging.New(nil, "silent"))
}

func TestBus_On_And_Emit(t *testing.T) {
	b := testBus()

	var got domain.Event
	b.On(domain.KindPairingCode, "test", func(_ context.Context, evt domain.Event) error {
		got = evt
		return nil
	})

	b.Emit(context.Background(), domain.PairingCode{Code: "2@abc"})
	assert.Equal(t, domain.PairingCode{Code: "2@abc"}, got)
}

func TestBus_Emit_OnlyMatchingKind(t *testing.T) {
	b := testBus()

	var called bool
	b.On(domain.KindMessageReceived, "test", func(_ context.Context, _ domain.Event) error {
		called = true
		return nil
	})

	b.Emit(context.Background(), domain.ConnectionUpdate{State: domain.ConnectionOpen})
	assert.False(t, called)
}

func TestBus_Emit_RegistrationOrder(t *testing.T) {
	b := testBus()

	var order []string
	b.On(All, "audit", func(_ context.Context, _ domain.Event) error {
		order = append(order, "audit")
		return nil
	})
	b.On(domain.KindConnectionUpdate, "first", func(_ context.Context, _ domain.Event) error {
		order = append(order, "first")
		return nil
	})
	b.On(domain.KindConnectionUpdate, "second", func(_ context.Context, _ domain.Event) error {
		order = append(order, "second")
		return nil
	})

	b.Emit(context.Background(), domain.ConnectionUpdate{State: domain.ConnectionClosed})
	assert.Equal(t, []string{"first", "second", "audit"}, order)
}

func TestBus_Emit_HandlerError(t *testing.T) {
	b := testBus()

	var secondCalled bool
	b.On(domain.KindCredentialsUpdated, "failing", func(_ context.Context, _ domain.Event) error {
		return errors.New("handler broke")
	})
	b.On(domain.KindCredentialsUpdated, "second", func(_ context.Context, _ domain.Event) error {
		secondCalled = true
		return nil
	})

	b.Emit(context.Background(), domain.CredentialsUpdated{})
	assert.True(t, secondCalled, "second handler should run despite first error")
}

func TestBus_Trace(t *testing.T) {
	var buf bytes.Buffer
	b := NewBus(logging.New(&buf, "trace"))
	b.Trace()
	assert.Equal(t, 1, b.Count(All))

	b.Emit(context.Background(), domain.MessageReceived{})
	b.Emit(context.Background(), domain.ConnectionUpdate{State: domain.ConnectionOpen})

	out := buf.String()
	assert.Contains(t, out, domain.KindMessageReceived)
	assert.Contains(t, out, domain.KindConnectionUpdate)
}

func TestBus_Publish(t *testing.T) {
	b := testBus()

	var kinds []string
	b.On(All, "collector", func(_ context.Context, evt domain.Event) error {
		kinds = append(kinds, evt.Kind())
		return nil
	})

	sink := b.Publish(context.Background())
	sink(domain.ConnectionUpdate{State: domain.ConnectionConnecting})
	sink(domain.MessageReceived{})

	assert.Equal(t, []string{domain.KindConnectionUpdate, domain.KindMessageReceived}, kinds)
}
