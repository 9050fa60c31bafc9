package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/annabot/internal/config"
	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/logging"
)

// ConversationStore persists chat history and remembered facts. History is
// scoped by conversation: the user ID for direct chats, the group ID for
// groups.
type ConversationStore interface {
	SaveMessage(ctx context.Context, rec domain.MessageRecord) error
	SaveMemory(ctx context.Context, rec domain.MemoryRecord) error
	// RecentMessages returns up to limit of the newest messages in
	// chronological order (oldest first).
	RecentMessages(ctx context.Context, chatType domain.ChatType, chatID string, limit int) ([]domain.MessageRecord, error)
	// RecentMemories returns up to limit memories, newest first.
	RecentMemories(ctx context.Context, chatType domain.ChatType, chatID string, limit int) ([]domain.MemoryRecord, error)
}

// NewConversationStore builds the backend selected by cfg. The SQLite
// backend shares db with the credential store; db may be nil for supabase.
func NewConversationStore(cfg config.StoreConfig, db *DB, log *logging.Logger) (ConversationStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "supabase":
		return NewSupabaseStore(SupabaseConfig{URL: cfg.SupabaseURL, APIKey: cfg.SupabaseKey}, log)
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("sqlite store requires an open database")
		}
		return NewSQLiteConversationStore(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// timeLayouts are the timestamp encodings seen from SQLite defaults and
// PostgREST (timestamptz and timestamp without zone).
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	time.DateTime,
}

// parseTime decodes a stored timestamp. Unknown formats yield the zero time.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
