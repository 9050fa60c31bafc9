package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/annabot/internal/domain"
)

// CredentialStore keeps the single session credential record. The device
// key material itself lives in the transport's own device store; this row
// mirrors the identity so status can be reported without connecting.
type CredentialStore struct {
	db *DB
}

// NewCredentialStore creates a credential store using the given database.
func NewCredentialStore(db *DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Load returns the stored credentials. ok is false when none are stored.
func (s *CredentialStore) Load(ctx context.Context) (creds domain.Credentials, ok bool, err error) {
	var updatedAt string
	err = s.db.sql.QueryRowContext(ctx,
		`SELECT device_jid, push_name, platform, updated_at FROM session_credentials WHERE id = 1`,
	).Scan(&creds.ID, &creds.PushName, &creds.Platform, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Credentials{}, false, nil
	}
	if err != nil {
		return domain.Credentials{}, false, fmt.Errorf("loading credentials: %w", err)
	}
	creds.UpdatedAt = parseTime(updatedAt)
	return creds, true, nil
}

// Save replaces the stored credentials.
func (s *CredentialStore) Save(ctx context.Context, creds domain.Credentials) error {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO session_credentials (id, device_jid, push_name, platform, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			device_jid = excluded.device_jid,
			push_name  = excluded.push_name,
			platform   = excluded.platform,
			updated_at = excluded.updated_at`,
		creds.ID, creds.PushName, creds.Platform, stamp(creds.UpdatedAt).Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	s.db.log.Debug().Str("device", creds.ID).Msg("credentials saved")
	return nil
}

// Clear removes the stored credentials.
func (s *CredentialStore) Clear(ctx context.Context) error {
	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM session_credentials`); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	s.db.log.Info().Msg("credentials cleared")
	return nil
}
