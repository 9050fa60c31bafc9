// Package routing turns inbound chat messages into persisted history and
// model replies.
package routing

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/annabot/internal/agent"
	"github.com/soyeahso/annabot/internal/config"
	"github.com/soyeahso/annabot/internal/dedupe"
	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/events"
	"github.com/soyeahso/annabot/internal/logging"
	"github.com/soyeahso/annabot/internal/store"
)

// ReplyPrefix marks the bot's own lines in stored history.
const ReplyPrefix = "AI Response: "

// Sender delivers a reply to a chat.
type Sender interface {
	Send(ctx context.Context, msg domain.OutboundMessage) error
}

// Stats is a point-in-time snapshot of router counters.
type Stats struct {
	Received          int64 `json:"received"`
	Ignored           int64 `json:"ignored"`
	Duplicates        int64 `json:"duplicates"`
	Replied           int64 `json:"replied"`
	InferenceFailures int64 `json:"inferenceFailures"`
	SendFailures      int64 `json:"sendFailures"`
	ActiveChats       int   `json:"activeChats"`
}

type counters struct {
	received, ignored, duplicates    atomic.Int64
	replied, inferenceFail, sendFail atomic.Int64
}

// Router answers direct messages and prefixed group messages.
type Router struct {
	cfg     config.RoutingConfig
	store   store.ConversationStore
	runner  *agent.Runner
	sender  Sender
	dedupe  dedupe.Store
	trigger *trigger
	queue   *serialQueue
	stats   counters
	log     *logging.Logger
}

// NewRouter creates a message router. dd may be nil to disable duplicate
// suppression.
func NewRouter(
	cfg config.RoutingConfig,
	conversations store.ConversationStore,
	runner *agent.Runner,
	sender Sender,
	dd dedupe.Store,
	log *logging.Logger,
) *Router {
	if cfg.TriggerPrefix == "" {
		cfg.TriggerPrefix = "@ai"
	}
	if cfg.DefaultUserName == "" {
		cfg.DefaultUserName = "User"
	}
	if cfg.DefaultGroupName == "" {
		cfg.DefaultGroupName = "Group"
	}
	if len(cfg.MemoryKeywords) == 0 {
		cfg.MemoryKeywords = config.DefaultMemoryKeywords
	}
	return &Router{
		cfg:     cfg,
		store:   conversations,
		runner:  runner,
		sender:  sender,
		dedupe:  dd,
		trigger: newTrigger(cfg.TriggerPrefix, cfg.MemoryKeywords),
		queue:   newSerialQueue(),
		log:     log.Sub("routing"),
	}
}

// Wire subscribes the router to inbound message events on bus.
func (r *Router) Wire(bus *events.Bus) {
	bus.On(domain.KindMessageReceived, "router", r.HandleEvent)
	r.log.Debug().Msg("wired message handler")
}

// HandleEvent queues MessageReceived events and ignores everything else.
// It never blocks on inference.
func (r *Router) HandleEvent(ctx context.Context, evt domain.Event) error {
	if m, ok := evt.(domain.MessageReceived); ok {
		r.Enqueue(ctx, m.Message)
	}
	return nil
}

// Enqueue screens msg and schedules its handling. Messages in the same
// chat are handled one at a time, in arrival order.
func (r *Router) Enqueue(ctx context.Context, msg domain.InboundMessage) {
	if job := r.prepare(ctx, msg); job != nil {
		r.queue.Submit(msg.ChatID, job)
	}
}

// HandleInbound screens and handles msg on the calling goroutine.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	if job := r.prepare(ctx, msg); job != nil {
		job()
	}
}

// Wait blocks until every queued message has been handled.
func (r *Router) Wait() {
	r.queue.Wait()
}

// Stats returns the current counters.
func (r *Router) Stats() Stats {
	return Stats{
		Received:          r.stats.received.Load(),
		Ignored:           r.stats.ignored.Load(),
		Duplicates:        r.stats.duplicates.Load(),
		Replied:           r.stats.replied.Load(),
		InferenceFailures: r.stats.inferenceFail.Load(),
		SendFailures:      r.stats.sendFail.Load(),
		ActiveChats:       r.queue.Active(),
	}
}

// prepare runs the cheap synchronous checks and returns the work left to
// do, or nil when msg needs nothing further.
func (r *Router) prepare(ctx context.Context, msg domain.InboundMessage) func() {
	r.stats.received.Add(1)

	text, ok := r.trigger.accept(msg)
	if !ok {
		r.stats.ignored.Add(1)
		r.log.Trace().Str("id", msg.ID).Str("chatId", msg.ChatID).Msg("ignoring message")
		return nil
	}

	if r.dedupe != nil && msg.ID != "" {
		fresh, err := r.dedupe.Claim(ctx, msg.ID)
		if err != nil {
			r.log.Warn().Err(err).Str("id", msg.ID).Msg("dedupe check failed, handling anyway")
		} else if !fresh {
			r.stats.duplicates.Add(1)
			r.log.Debug().Str("id", msg.ID).Msg("duplicate message")
			return nil
		}
	}

	prompt, triggered := r.trigger.prompt(msg.ChatType, text)
	if !triggered {
		r.stats.ignored.Add(1)
		if r.cfg.RecordGroupChatter {
			return func() { r.saveMessage(ctx, r.inboundRecord(msg, text)) }
		}
		return nil
	}
	return func() { r.respond(ctx, msg, text, prompt) }
}

func (r *Router) respond(ctx context.Context, msg domain.InboundMessage, text, prompt string) {
	start := time.Now()
	log := r.log.With("chatId", msg.ChatID)
	log.Info().
		Str("from", msg.From).
		Str("chatType", string(msg.ChatType)).
		Msg("routing inbound message")

	// A new memory counts for this reply; the message itself joins the
	// history only after it is read, so the prompt never repeats it.
	if r.trigger.memoryWorthy(prompt) {
		r.saveMemory(ctx, r.memoryRecord(msg, prompt))
	}
	history, memories := r.loadContext(ctx, msg)
	r.saveMessage(ctx, r.inboundRecord(msg, text))

	result := r.runner.Reply(ctx, agent.Turn{
		ChatType: msg.ChatType,
		ChatID:   msg.ChatID,
		ChatName: r.chatName(msg),
		History:  history,
		Memories: memories,
		Text:     prompt,
	})
	if result.Fallback {
		r.stats.inferenceFail.Add(1)
	}

	reply := r.inboundRecord(msg, ReplyPrefix+result.Response)
	reply.CreatedAt = time.Time{}
	r.saveMessage(ctx, reply)

	out := domain.OutboundMessage{To: msg.ChatID, Body: result.Response}
	if msg.IsGroup() || r.cfg.QuoteDirect {
		quoted := msg
		out.Quote = &quoted
	}
	if err := r.sender.Send(ctx, out); err != nil {
		r.stats.sendFail.Add(1)
		log.Error().Err(err).Msg("failed to send reply")
		return
	}
	r.stats.replied.Add(1)

	log.Info().
		Str("model", result.Model).
		Bool("fallback", result.Fallback).
		Dur("inference", result.Duration).
		Dur("duration", time.Since(start)).
		Msg("reply sent")
}

// loadContext fetches history and memories in parallel. A failed read
// leaves that part empty.
func (r *Router) loadContext(ctx context.Context, msg domain.InboundMessage) (history, memories []string) {
	var g errgroup.Group
	g.Go(func() error {
		records, err := r.store.RecentMessages(ctx, msg.ChatType, msg.ChatID, r.cfg.HistoryLimit)
		if err != nil {
			r.log.Warn().Err(err).Str("chatId", msg.ChatID).Msg("loading history failed")
			return nil
		}
		for _, rec := range records {
			history = append(history, rec.Line())
		}
		return nil
	})
	g.Go(func() error {
		records, err := r.store.RecentMemories(ctx, msg.ChatType, msg.ChatID, r.cfg.MemoryLimit)
		if err != nil {
			r.log.Warn().Err(err).Str("chatId", msg.ChatID).Msg("loading memories failed")
			return nil
		}
		for _, rec := range records {
			memories = append(memories, rec.Line())
		}
		return nil
	})
	_ = g.Wait()
	return history, memories
}

func (r *Router) chatName(msg domain.InboundMessage) string {
	if msg.IsGroup() {
		if msg.ChatName != "" {
			return msg.ChatName
		}
		return r.cfg.DefaultGroupName
	}
	if msg.FromName != "" {
		return msg.FromName
	}
	return r.cfg.DefaultUserName
}

func (r *Router) inboundRecord(msg domain.InboundMessage, text string) domain.MessageRecord {
	rec := domain.MessageRecord{
		ChatType:  msg.ChatType,
		ChatID:    msg.ChatID,
		ChatName:  r.chatName(msg),
		Text:      text,
		CreatedAt: msg.Timestamp,
	}
	if msg.IsGroup() {
		rec.SenderID = msg.From
		rec.SenderName = msg.SenderName()
	}
	return rec
}

func (r *Router) memoryRecord(msg domain.InboundMessage, memory string) domain.MemoryRecord {
	rec := domain.MemoryRecord{
		ChatType: msg.ChatType,
		ChatID:   msg.ChatID,
		ChatName: r.chatName(msg),
		Memory:   memory,
	}
	if msg.IsGroup() {
		rec.SenderID = msg.From
		rec.SenderName = msg.SenderName()
	}
	return rec
}

func (r *Router) saveMessage(ctx context.Context, rec domain.MessageRecord) {
	if err := r.store.SaveMessage(ctx, rec); err != nil {
		r.log.Warn().Err(err).Str("chatId", rec.ChatID).Msg("saving message failed")
	}
}

func (r *Router) saveMemory(ctx context.Context, rec domain.MemoryRecord) {
	if err := r.store.SaveMemory(ctx, rec); err != nil {
		r.log.Warn().Err(err).Str("chatId", rec.ChatID).Msg("saving memory failed")
	}
}
