package routing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/annabot/internal/agent"
	"github.com/soyeahso/annabot/internal/config"
	"github.com/soyeahso/annabot/internal/dedupe"
	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/events"
	"github.com/soyeahso/annabot/internal/llm"
	"github.com/soyeahso/annabot/internal/logging"
	"github.com/soyeahso/annabot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceJID = "15550001111@s.whatsapp.net"
	bobJID   = "15550002222@s.whatsapp.net"
	groupJID = "120363000000000001@g.us"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// fakeStore keeps records in memory and can be told to fail.
type fakeStore struct {
	mu       sync.Mutex
	messages []domain.MessageRecord
	memories []domain.MemoryRecord
	failAll  error
}

func (s *fakeStore) SaveMessage(_ context.Context, rec domain.MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	s.messages = append(s.messages, rec)
	return nil
}

func (s *fakeStore) SaveMemory(_ context.Context, rec domain.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	s.memories = append(s.memories, rec)
	return nil
}

func (s *fakeStore) RecentMessages(_ context.Context, chatType domain.ChatType, chatID string, limit int) ([]domain.MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	var out []domain.MessageRecord
	for _, rec := range s.messages {
		if rec.ChatType == chatType && rec.ChatID == chatID {
			out = append(out, rec)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStore) RecentMemories(_ context.Context, chatType domain.ChatType, chatID string, limit int) ([]domain.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	var out []domain.MemoryRecord
	for i := len(s.memories) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.memories[i]
		if rec.ChatType == chatType && rec.ChatID == chatID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) snapshot() ([]domain.MessageRecord, []domain.MemoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MessageRecord(nil), s.messages...), append([]domain.MemoryRecord(nil), s.memories...)
}

// recordingSender captures outbound messages.
type recordingSender struct {
	mu   sync.Mutex
	sent []domain.OutboundMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg domain.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []domain.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboundMessage(nil), s.sent...)
}

type harness struct {
	router *Router
	store  *fakeStore
	sender *recordingSender
	model  *llm.MockClient
}

func newHarness(t *testing.T, cfg config.RoutingConfig, reply func(req llm.CompletionRequest) (*llm.CompletionResponse, error)) *harness {
	t.Helper()
	if reply == nil {
		reply = func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "heyyy 😊", Model: "mock-model"}, nil
		}
	}
	model := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return reply(req)
		},
	}
	reg := llm.NewRegistry(testLogger())
	reg.Register("mock", model)
	reg.SetFallback("mock")

	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 40
	}
	if cfg.MemoryLimit == 0 {
		cfg.MemoryLimit = 5
	}

	h := &harness{store: &fakeStore{}, sender: &recordingSender{}, model: model}
	runner := agent.NewRunner(agent.RunnerConfig{Model: "mock"}, reg, testLogger())
	h.router = NewRouter(cfg, h.store, runner, h.sender, nil, testLogger())
	return h
}

func dm(id, text string) domain.InboundMessage {
	return domain.InboundMessage{
		ID:        id,
		From:      aliceJID,
		FromName:  "Alice",
		ChatID:    aliceJID,
		ChatType:  domain.ChatTypeDM,
		Content:   domain.Content{Conversation: text},
		Timestamp: time.Now().UTC(),
	}
}

func groupMsg(id, text string) domain.InboundMessage {
	return domain.InboundMessage{
		ID:        id,
		From:      bobJID,
		FromName:  "Bob",
		ChatID:    groupJID,
		ChatName:  "Study Group",
		ChatType:  domain.ChatTypeGroup,
		Content:   domain.Content{Conversation: text},
		Timestamp: time.Now().UTC(),
	}
}

// --- Direct chats ---

func TestDirectMessageFirstContact(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, nil)

	h.router.HandleInbound(context.Background(), dm("m1", "Hi"))

	reqs := h.model.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Hi", reqs[0].Messages[0].Content)
	assert.Contains(t, reqs[0].System, "chat history of this user named Alice:\n"+agent.NoHistory+"\n\n")
	assert.Contains(t, reqs[0].System, "Important memories to consider:\n"+agent.NoMemories)
	assert.NotContains(t, reqs[0].System, "\nHi\n")

	sent := h.sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, aliceJID, sent[0].To)
	assert.Equal(t, "heyyy 😊", sent[0].Body)
	assert.Nil(t, sent[0].Quote)

	messages, memories := h.store.snapshot()
	require.Len(t, messages, 2)
	assert.Equal(t, "Hi", messages[0].Text)
	assert.Equal(t, "Alice", messages[0].ChatName)
	assert.Equal(t, "AI Response: heyyy 😊", messages[1].Text)
	assert.Empty(t, memories)

	stats := h.router.Stats()
	assert.Equal(t, int64(1), stats.Received)
	assert.Equal(t, int64(1), stats.Replied)
}

func TestDirectMessageHistoryIncludesPriorTurns(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, nil)
	ctx := context.Background()

	h.router.HandleInbound(ctx, dm("m1", "Hi"))
	h.router.HandleInbound(ctx, dm("m2", "how are you?"))

	reqs := h.model.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[1].System, "user named Alice:\nHi\nAI Response: heyyy 😊\n\n")
	assert.NotContains(t, reqs[1].System, "how are you?")

	messages, _ := h.store.snapshot()
	require.Len(t, messages, 4)
	assert.Equal(t, "how are you?", messages[2].Text)
}

func TestDirectMessageNameFallback(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, nil)

	msg := dm("m1", "Hi")
	msg.FromName = ""
	h.router.HandleInbound(context.Background(), msg)

	reqs := h.model.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].System, "user named User:")
}

func TestDirectMessageQuoteOption(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{QuoteDirect: true}, nil)

	h.router.HandleInbound(context.Background(), dm("m1", "Hi"))

	sent := h.sender.messages()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].Quote)
	assert.Equal(t, "m1", sent[0].Quote.ID)
}

func TestDirectMessageUsesCaption(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, nil)

	msg := dm("m1", "")
	msg.Content = domain.Content{ImageCaption: "what is this?"}
	h.router.HandleInbound(context.Background(), msg)

	reqs := h.model.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "what is this?", reqs[0].Messages[0].Content)
}

// --- Ignored messages ---

func TestIgnoredMessages(t *testing.T) {
	self := dm("m1", "note to self")
	self.FromMe = true

	status := dm("m2", "my story")
	status.ChatID = domain.StatusBroadcastID

	sticker := dm("m3", "")

	blank := dm("m4", "   ")

	for name, msg := range map[string]domain.InboundMessage{
		"self": self, "broadcast": status, "no text": sticker, "blank": blank,
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, config.RoutingConfig{}, nil)
			h.router.HandleInbound(context.Background(), msg)

			assert.Empty(t, h.model.Requests())
			assert.Empty(t, h.sender.messages())
			messages, memories := h.store.snapshot()
			assert.Empty(t, messages)
			assert.Empty(t, memories)
			assert.Equal(t, int64(1), h.router.Stats().Ignored)
		})
	}
}

// --- Groups ---

func TestGroupUntriggeredIsIgnored(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, nil)

	h.router.HandleInbound(context.Background(), groupMsg("g1", "anyone up for lunch? my exam is done"))

	assert.Empty(t, h.model.Requests())
	assert.Empty(t, h.sender.messages())
	messages, memories := h.store.snapshot()
	assert.Empty(t, messages)
	assert.Empty(t, memories)
}

func TestGroupChatterRecorded(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{RecordGroupChatter: true}, nil)
	ctx := context.Background()

	h.router.HandleInbound(ctx, groupMsg("g1", "lunch?"))
	assert.Empty(t, h.sender.messages())

	h.router.HandleInbound(ctx, groupMsg("g2", "@ai where should we eat"))

	reqs := h.model.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].System, "Study Group:\nBob: lunch?\n\n")

	messages, _ := h.store.snapshot()
	require.Len(t, messages, 3)
	assert.Equal(t, "@ai where should we eat", messages[1].Text)
}

func TestGroupTriggerWithMemory(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, nil)

	msg := groupMsg("g1", "@ai remind me about my exam")
	h.router.HandleInbound(context.Background(), msg)

	reqs := h.model.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "remind me about my exam", reqs[0].Messages[0].Content)
	assert.Contains(t, reqs[0].System, "chat history of this group named Study Group:\n"+agent.NoHistory)
	assert.Contains(t, reqs[0].System, "Important memories to consider:\nBob: remind me about my exam")

	_, memories := h.store.snapshot()
	require.Len(t, memories, 1)
	assert.Equal(t, "remind me about my exam", memories[0].Memory)
	assert.Equal(t, bobJID, memories[0].SenderID)
	assert.Equal(t, groupJID, memories[0].ChatID)

	sent := h.sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, groupJID, sent[0].To)
	require.NotNil(t, sent[0].Quote)
	assert.Equal(t, "g1", sent[0].Quote.ID)

	messages, _ := h.store.snapshot()
	require.Len(t, messages, 2)
	assert.Equal(t, "@ai remind me about my exam", messages[0].Text)
	assert.Equal(t, "Bob: AI Response: heyyy 😊", messages[1].Line())
}

func TestGroupTriggerVariants(t *testing.T) {
	tests := []struct {
		text   string
		prompt string
	}{
		{"@ai hello", "hello"},
		{"@AI hello", "hello"},
		{"   @ai   hello there", "hello there"},
		{"@aihello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			h := newHarness(t, config.RoutingConfig{}, nil)
			h.router.HandleInbound(context.Background(), groupMsg("g1", tt.text))

			reqs := h.model.Requests()
			require.Len(t, reqs, 1)
			assert.Equal(t, tt.prompt, reqs[0].Messages[0].Content)
		})
	}
}

func TestGroupBarePrefixIsAnswered(t *testing.T) {
	for _, text := range []string{"@ai", "@ai "} {
		t.Run(text, func(t *testing.T) {
			h := newHarness(t, config.RoutingConfig{}, nil)

			h.router.HandleInbound(context.Background(), groupMsg("g1", text))

			reqs := h.model.Requests()
			require.Len(t, reqs, 1)
			assert.Equal(t, "", reqs[0].Messages[0].Content)

			sent := h.sender.messages()
			require.Len(t, sent, 1)
			require.NotNil(t, sent[0].Quote)
			assert.Equal(t, "g1", sent[0].Quote.ID)

			messages, memories := h.store.snapshot()
			require.Len(t, messages, 2)
			assert.Equal(t, text, messages[0].Text)
			assert.Empty(t, memories)
			assert.Equal(t, int64(1), h.router.Stats().Replied)
		})
	}
}

func TestGroupNameFallback(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, nil)

	ctx := context.Background()
	for _, id := range []string{"g1", "g2"} {
		msg := groupMsg(id, "@ai hi")
		msg.ChatName = ""
		msg.FromName = ""
		h.router.HandleInbound(ctx, msg)
	}

	reqs := h.model.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].System, "group named Group:")
	assert.Contains(t, reqs[1].System, "Group:\n"+bobJID+": @ai hi\n")

	messages, _ := h.store.snapshot()
	require.NotEmpty(t, messages)
	assert.Equal(t, bobJID, messages[0].SenderName)
	assert.Equal(t, "Group", messages[0].ChatName)
}

func TestCustomTriggerPrefix(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{TriggerPrefix: "!anna"}, nil)
	ctx := context.Background()

	h.router.HandleInbound(ctx, groupMsg("g1", "@ai hi"))
	h.router.HandleInbound(ctx, groupMsg("g2", "!Anna hi"))

	reqs := h.model.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "hi", reqs[0].Messages[0].Content)
}

// --- Failures ---

func TestInferenceFailureSendsFallback(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, func(llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, &llm.ProviderError{Provider: "mock", Code: 400, Message: "bad request"}
	})

	h.router.HandleInbound(context.Background(), dm("m1", "Hi"))

	sent := h.sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, agent.FailedReply, sent[0].Body)

	messages, _ := h.store.snapshot()
	require.Len(t, messages, 2)
	assert.Equal(t, ReplyPrefix+agent.FailedReply, messages[1].Text)
	assert.Equal(t, int64(1), h.router.Stats().InferenceFailures)
}

func TestEmptyCompletionSendsFallback(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, func(llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: "  "}, nil
	})

	h.router.HandleInbound(context.Background(), dm("m1", "Hi"))

	sent := h.sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, agent.EmptyReply, sent[0].Body)
}

func TestStoreFailureStillReplies(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, nil)
	h.store.failAll = errors.New("database is down")

	h.router.HandleInbound(context.Background(), dm("m1", "my birthday is friday"))

	reqs := h.model.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].System, agent.NoHistory)
	require.Len(t, h.sender.messages(), 1)
}

func TestSendFailureCounted(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, nil)
	h.sender.err = errors.New("not connected")

	h.router.HandleInbound(context.Background(), dm("m1", "Hi"))

	stats := h.router.Stats()
	assert.Equal(t, int64(1), stats.SendFailures)
	assert.Equal(t, int64(0), stats.Replied)
}

// --- Dedupe ---

func TestDuplicateDeliveryAnsweredOnce(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, nil)
	dd, err := dedupe.NewStore(dedupe.StoreTypeMemory)
	require.NoError(t, err)
	h.router.dedupe = dd

	ctx := context.Background()
	h.router.HandleInbound(ctx, dm("m1", "Hi"))
	h.router.HandleInbound(ctx, dm("m1", "Hi"))

	assert.Len(t, h.sender.messages(), 1)
	assert.Equal(t, int64(1), h.router.Stats().Duplicates)
}

// --- Queueing ---

func TestEnqueuePreservesPerChatOrder(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: "re: " + req.Messages[0].Content}, nil
	})
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		h.router.Enqueue(ctx, dm("id-"+text, text))
	}
	h.router.Wait()

	var bodies []string
	for _, msg := range h.sender.messages() {
		bodies = append(bodies, msg.Body)
	}
	assert.Equal(t, []string{"re: one", "re: two", "re: three"}, bodies)

	messages, _ := h.store.snapshot()
	var texts []string
	for _, rec := range messages {
		texts = append(texts, rec.Text)
	}
	assert.Equal(t, "one|AI Response: re: one|two|AI Response: re: two|three|AI Response: re: three", strings.Join(texts, "|"))
	assert.Equal(t, 0, h.router.Stats().ActiveChats)
}

func TestWireHandlesBusEvents(t *testing.T) {
	h := newHarness(t, config.RoutingConfig{}, nil)
	bus := events.NewBus(testLogger())
	h.router.Wire(bus)
	assert.Equal(t, 1, bus.Count(domain.KindMessageReceived))

	ctx := context.Background()
	bus.Emit(ctx, domain.ConnectionUpdate{State: domain.ConnectionOpen})
	bus.Emit(ctx, domain.MessageReceived{Message: dm("m1", "Hi")})
	h.router.Wait()

	require.Len(t, h.sender.messages(), 1)
	assert.Equal(t, int64(1), h.router.Stats().Received)
}

// --- SQLite end to end ---

func TestRouterWithSQLiteStore(t *testing.T) {
	db, err := store.Open(store.MemoryPath, testLogger())
	require.NoError(t, err)
	defer db.Close()

	h := newHarness(t, config.RoutingConfig{}, nil)
	h.router.store = store.NewSQLiteConversationStore(db)
	ctx := context.Background()

	h.router.HandleInbound(ctx, groupMsg("g1", "@ai the meeting is at 5"))
	h.router.HandleInbound(ctx, groupMsg("g2", "@ai when is it?"))

	reqs := h.model.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].System, "Study Group:\n"+agent.NoHistory)
	assert.Contains(t, reqs[0].System, "Important memories to consider:\nBob: the meeting is at 5")
	assert.Contains(t, reqs[1].System, "Study Group:\nBob: @ai the meeting is at 5\nBob: AI Response: heyyy 😊\n\n")
	assert.Contains(t, reqs[1].System, "Important memories to consider:\nBob: the meeting is at 5")
}
