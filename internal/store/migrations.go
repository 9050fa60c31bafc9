package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations. Table and column
// names match the hosted Supabase schema so rows can be moved between the
// two backends unchanged.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create direct chat history and memories",
		SQL: `
			CREATE TABLE user_messages (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				jid         TEXT NOT NULL,
				name        TEXT NOT NULL DEFAULT '',
				message     TEXT NOT NULL,
				timestamp   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_user_messages_jid ON user_messages (jid, id);

			CREATE TABLE user_memory (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				jid         TEXT NOT NULL,
				name        TEXT NOT NULL DEFAULT '',
				memory      TEXT NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_user_memory_jid ON user_memory (jid, id);
		`,
	},
	{
		Version: 2,
		Name:    "create group history and memories",
		SQL: `
			CREATE TABLE group_messages (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				group_jid    TEXT NOT NULL,
				group_name   TEXT NOT NULL DEFAULT '',
				sender_jid   TEXT NOT NULL DEFAULT '',
				sender_name  TEXT NOT NULL DEFAULT '',
				message      TEXT NOT NULL,
				timestamp    TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_group_messages_group ON group_messages (group_jid, id);

			CREATE TABLE group_memories (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				group_jid    TEXT NOT NULL,
				group_name   TEXT NOT NULL DEFAULT '',
				sender_jid   TEXT NOT NULL DEFAULT '',
				sender_name  TEXT NOT NULL DEFAULT '',
				memory       TEXT NOT NULL,
				created_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_group_memories_group ON group_memories (group_jid, id);
		`,
	},
	{
		Version: 3,
		Name:    "create session credentials",
		SQL: `
			CREATE TABLE session_credentials (
				id          INTEGER PRIMARY KEY CHECK (id = 1),
				device_jid  TEXT NOT NULL DEFAULT '',
				push_name   TEXT NOT NULL DEFAULT '',
				platform    TEXT NOT NULL DEFAULT '',
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
}
