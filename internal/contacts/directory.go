// Package contacts provides contact-identity resolution for the
// notification core: a SQLite-backed contact directory and a batching
// resolver that answers lookups through the dispatch loop.
package contacts

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/commtray/commtrayd/internal/domain"
	"github.com/commtray/commtrayd/internal/logging"
)

const directorySchemaSQL = `
CREATE TABLE IF NOT EXISTS contacts (
	account      TEXT NOT NULL DEFAULT '',
	remote_min   TEXT NOT NULL,
	display_name TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	PRIMARY KEY (account, remote_min)
);
`

// Directory is the SQLite-backed contact lookup table. Entries with an
// empty account apply to every account.
type Directory struct {
	db  *sql.DB
	log logging.Logger
}

// OpenDirectory opens (creating if needed) the contact directory at dbPath.
func OpenDirectory(dbPath string, log logging.Logger) (*Directory, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("contact directory: db path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("contact directory: create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("contact directory: open db: %w", err)
	}
	if _, err := db.Exec(directorySchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("contact directory: create schema: %w", err)
	}
	return &Directory{db: db, log: log.With("component", "contacts")}, nil
}

// Close closes the underlying SQLite connection.
func (d *Directory) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Lookup returns the display name for a recipient. Account-specific
// entries win over account-agnostic ones.
func (d *Directory) Lookup(recipient domain.Recipient) (string, bool, error) {
	row := d.db.QueryRow(`
		SELECT display_name FROM contacts
		WHERE remote_min = ? AND account IN (?, '')
		ORDER BY account DESC LIMIT 1`,
		recipient.MinimizedRemote(), recipient.Account)

	var name string
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("contact directory: lookup: %w", err)
	}
	return name, true, nil
}

// Put inserts or updates a contact entry.
func (d *Directory) Put(account, remote, displayName string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := d.db.Exec(`
		INSERT INTO contacts (account, remote_min, display_name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (account, remote_min) DO UPDATE
		SET display_name = excluded.display_name, updated_at = excluded.updated_at`,
		account, domain.NewRecipient(account, remote).MinimizedRemote(), displayName, now)
	if err != nil {
		return fmt.Errorf("contact directory: put: %w", err)
	}
	return nil
}

// Remove deletes a contact entry. Removing an absent entry is a no-op.
func (d *Directory) Remove(account, remote string) error {
	_, err := d.db.Exec(`DELETE FROM contacts WHERE account = ? AND remote_min = ?`,
		account, domain.NewRecipient(account, remote).MinimizedRemote())
	if err != nil {
		return fmt.Errorf("contact directory: remove: %w", err)
	}
	return nil
}
