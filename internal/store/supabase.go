package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/logging"
)

// SupabaseConfig holds Supabase connection configuration.
type SupabaseConfig struct {
	URL    string
	APIKey string
}

// SupabaseStore implements ConversationStore on a hosted Supabase project
// through its PostgREST API.
type SupabaseStore struct {
	client *supabase.Client
	log    *logging.Logger
}

// NewSupabaseStore creates a store client. No request is made until the
// first read or write.
func NewSupabaseStore(cfg SupabaseConfig, log *logging.Logger) (*SupabaseStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &SupabaseStore{client: client, log: log.Sub("supabase")}, nil
}

type userMessageRow struct {
	JID       string `json:"jid"`
	Name      string `json:"name"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

type userMemoryRow struct {
	JID       string `json:"jid"`
	Name      string `json:"name"`
	Memory    string `json:"memory"`
	CreatedAt string `json:"created_at,omitempty"`
}

type groupMessageRow struct {
	GroupJID   string `json:"group_jid"`
	GroupName  string `json:"group_name"`
	SenderJID  string `json:"sender_jid"`
	SenderName string `json:"sender_name"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp,omitempty"`
}

type groupMemoryRow struct {
	GroupJID   string `json:"group_jid"`
	GroupName  string `json:"group_name"`
	SenderJID  string `json:"sender_jid"`
	SenderName string `json:"sender_name"`
	Memory     string `json:"memory"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// insert writes one row and discards the response body. Timestamps are
// left to the column defaults.
func (s *SupabaseStore) insert(table string, row any) error {
	_, _, err := s.client.From(table).
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	return nil
}

// SaveMessage appends one history line.
func (s *SupabaseStore) SaveMessage(_ context.Context, rec domain.MessageRecord) error {
	if rec.ChatType == domain.ChatTypeGroup {
		return s.insert("group_messages", groupMessageRow{
			GroupJID:   rec.ChatID,
			GroupName:  rec.ChatName,
			SenderJID:  rec.SenderID,
			SenderName: rec.SenderName,
			Message:    rec.Text,
		})
	}
	return s.insert("user_messages", userMessageRow{
		JID:     rec.ChatID,
		Name:    rec.ChatName,
		Message: rec.Text,
	})
}

// SaveMemory appends one remembered fact.
func (s *SupabaseStore) SaveMemory(_ context.Context, rec domain.MemoryRecord) error {
	if rec.ChatType == domain.ChatTypeGroup {
		return s.insert("group_memories", groupMemoryRow{
			GroupJID:   rec.ChatID,
			GroupName:  rec.ChatName,
			SenderJID:  rec.SenderID,
			SenderName: rec.SenderName,
			Memory:     rec.Memory,
		})
	}
	return s.insert("user_memory", userMemoryRow{
		JID:    rec.ChatID,
		Name:   rec.ChatName,
		Memory: rec.Memory,
	})
}

// selectNewest runs select/eq/order desc/limit against table into out.
func (s *SupabaseStore) selectNewest(table, columns, key, value, orderBy string, limit int, out any) error {
	_, err := s.client.From(table).
		Select(columns, "", false).
		Eq(key, value).
		Order(orderBy, &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteTo(out)
	if err != nil {
		return fmt.Errorf("querying %s: %w", table, err)
	}
	return nil
}

// RecentMessages returns the newest limit messages, oldest first.
func (s *SupabaseStore) RecentMessages(_ context.Context, chatType domain.ChatType, chatID string, limit int) ([]domain.MessageRecord, error) {
	var records []domain.MessageRecord

	if chatType == domain.ChatTypeGroup {
		var rows []groupMessageRow
		if err := s.selectNewest("group_messages", "group_jid,group_name,sender_jid,sender_name,message,timestamp",
			"group_jid", chatID, "timestamp", limit, &rows); err != nil {
			return nil, err
		}
		for _, r := range rows {
			records = append(records, domain.MessageRecord{
				ChatType:   chatType,
				ChatID:     r.GroupJID,
				ChatName:   r.GroupName,
				SenderID:   r.SenderJID,
				SenderName: r.SenderName,
				Text:       r.Message,
				CreatedAt:  parseTime(r.Timestamp),
			})
		}
	} else {
		var rows []userMessageRow
		if err := s.selectNewest("user_messages", "jid,name,message,timestamp",
			"jid", chatID, "timestamp", limit, &rows); err != nil {
			return nil, err
		}
		for _, r := range rows {
			records = append(records, domain.MessageRecord{
				ChatType:   chatType,
				ChatID:     r.JID,
				ChatName:   r.Name,
				SenderID:   r.JID,
				SenderName: r.Name,
				Text:       r.Message,
				CreatedAt:  parseTime(r.Timestamp),
			})
		}
	}

	slices.Reverse(records)
	s.log.Trace().Str("chat", chatID).Int("count", len(records)).Msg("history loaded")
	return records, nil
}

// RecentMemories returns the newest limit memories, newest first.
func (s *SupabaseStore) RecentMemories(_ context.Context, chatType domain.ChatType, chatID string, limit int) ([]domain.MemoryRecord, error) {
	var records []domain.MemoryRecord

	if chatType == domain.ChatTypeGroup {
		var rows []groupMemoryRow
		if err := s.selectNewest("group_memories", "group_jid,group_name,sender_jid,sender_name,memory,created_at",
			"group_jid", chatID, "created_at", limit, &rows); err != nil {
			return nil, err
		}
		for _, r := range rows {
			records = append(records, domain.MemoryRecord{
				ChatType:   chatType,
				ChatID:     r.GroupJID,
				ChatName:   r.GroupName,
				SenderID:   r.SenderJID,
				SenderName: r.SenderName,
				Memory:     r.Memory,
				CreatedAt:  parseTime(r.CreatedAt),
			})
		}
		return records, nil
	}

	var rows []userMemoryRow
	if err := s.selectNewest("user_memory", "jid,name,memory,created_at",
		"jid", chatID, "created_at", limit, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		records = append(records, domain.MemoryRecord{
			ChatType:   chatType,
			ChatID:     r.JID,
			ChatName:   r.Name,
			SenderID:   r.JID,
			SenderName: r.Name,
			Memory:     r.Memory,
			CreatedAt:  parseTime(r.CreatedAt),
		})
	}
	return records, nil
}
