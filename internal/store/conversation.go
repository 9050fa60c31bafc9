package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/soyeahso/annabot/internal/domain"
)

// SQLiteConversationStore implements ConversationStore backed by SQLite.
type SQLiteConversationStore struct {
	db *DB
}

// NewSQLiteConversationStore creates a conversation store using the given database.
func NewSQLiteConversationStore(db *DB) *SQLiteConversationStore {
	return &SQLiteConversationStore{db: db}
}

// SaveMessage appends one history line.
func (s *SQLiteConversationStore) SaveMessage(ctx context.Context, rec domain.MessageRecord) error {
	ts := stamp(rec.CreatedAt).Format(time.RFC3339Nano)

	var err error
	if rec.ChatType == domain.ChatTypeGroup {
		_, err = s.db.sql.ExecContext(ctx,
			`INSERT INTO group_messages (group_jid, group_name, sender_jid, sender_name, message, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ChatID, rec.ChatName, rec.SenderID, rec.SenderName, rec.Text, ts,
		)
	} else {
		_, err = s.db.sql.ExecContext(ctx,
			`INSERT INTO user_messages (jid, name, message, timestamp) VALUES (?, ?, ?, ?)`,
			rec.ChatID, rec.ChatName, rec.Text, ts,
		)
	}
	if err != nil {
		return fmt.Errorf("saving %s message: %w", rec.ChatType, err)
	}
	return nil
}

// SaveMemory appends one remembered fact.
func (s *SQLiteConversationStore) SaveMemory(ctx context.Context, rec domain.MemoryRecord) error {
	ts := stamp(rec.CreatedAt).Format(time.RFC3339Nano)

	var err error
	if rec.ChatType == domain.ChatTypeGroup {
		_, err = s.db.sql.ExecContext(ctx,
			`INSERT INTO group_memories (group_jid, group_name, sender_jid, sender_name, memory, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ChatID, rec.ChatName, rec.SenderID, rec.SenderName, rec.Memory, ts,
		)
	} else {
		_, err = s.db.sql.ExecContext(ctx,
			`INSERT INTO user_memory (jid, name, memory, created_at) VALUES (?, ?, ?, ?)`,
			rec.ChatID, rec.ChatName, rec.Memory, ts,
		)
	}
	if err != nil {
		return fmt.Errorf("saving %s memory: %w", rec.ChatType, err)
	}
	return nil
}

// RecentMessages returns the newest limit messages, oldest first.
func (s *SQLiteConversationStore) RecentMessages(ctx context.Context, chatType domain.ChatType, chatID string, limit int) ([]domain.MessageRecord, error) {
	query := `SELECT jid, name, jid, name, message, timestamp
		FROM user_messages WHERE jid = ? ORDER BY id DESC LIMIT ?`
	if chatType == domain.ChatTypeGroup {
		query = `SELECT group_jid, group_name, sender_jid, sender_name, message, timestamp
			FROM group_messages WHERE group_jid = ? ORDER BY id DESC LIMIT ?`
	}

	rows, err := s.db.sql.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying %s messages: %w", chatType, err)
	}
	defer rows.Close()

	var records []domain.MessageRecord
	for rows.Next() {
		rec := domain.MessageRecord{ChatType: chatType}
		var ts string
		if err := rows.Scan(&rec.ChatID, &rec.ChatName, &rec.SenderID, &rec.SenderName, &rec.Text, &ts); err != nil {
			return nil, fmt.Errorf("scanning %s message: %w", chatType, err)
		}
		rec.CreatedAt = parseTime(ts)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(records)
	return records, nil
}

// RecentMemories returns the newest limit memories, newest first.
func (s *SQLiteConversationStore) RecentMemories(ctx context.Context, chatType domain.ChatType, chatID string, limit int) ([]domain.MemoryRecord, error) {
	query := `SELECT jid, name, jid, name, memory, created_at
		FROM user_memory WHERE jid = ? ORDER BY id DESC LIMIT ?`
	if chatType == domain.ChatTypeGroup {
		query = `SELECT group_jid, group_name, sender_jid, sender_name, memory, created_at
			FROM group_memories WHERE group_jid = ? ORDER BY id DESC LIMIT ?`
	}

	rows, err := s.db.sql.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying %s memories: %w", chatType, err)
	}
	defer rows.Close()

	var records []domain.MemoryRecord
	for rows.Next() {
		rec := domain.MemoryRecord{ChatType: chatType}
		var ts string
		if err := rows.Scan(&rec.ChatID, &rec.ChatName, &rec.SenderID, &rec.SenderName, &rec.Memory, &ts); err != nil {
			return nil, fmt.Errorf("scanning %s memory: %w", chatType, err)
		}
		rec.CreatedAt = parseTime(ts)
		records = append(records, rec)
	}
	return records, rows.Err()
}
