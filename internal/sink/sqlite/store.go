// Package sqlite provides the SQLite-backed notification sink. Published
// records are the daemon's only durable state: the registry reads them back
// at startup to rebuild its in-memory groups.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/commtray/commtrayd/internal/logging"
	"github.com/commtray/commtrayd/internal/metrics"
	"github.com/commtray/commtrayd/internal/ports"
)

// ErrRecordNotFound indicates that a notification record cannot be found.
var ErrRecordNotFound = errors.New("notification record not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notifications (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	kind         TEXT NOT NULL DEFAULT 'notification',
	app_name     TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	summary      TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	item_count   INTEGER NOT NULL DEFAULT 0,
	timestamp    TEXT NOT NULL DEFAULT '',
	hidden       INTEGER NOT NULL DEFAULT 0,
	actions      TEXT NOT NULL DEFAULT '[]',
	member_data  BLOB,
	open         INTEGER NOT NULL DEFAULT 1,
	close_reason TEXT NOT NULL DEFAULT '',
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_open ON notifications(open, kind);
`

// Store implements ports.NotificationSink on a SQLite database.
type Store struct {
	db       *sql.DB
	log      logging.Logger
	metrics  *metrics.Metrics
	onClosed func(id uint32, reason ports.CloseReason)
}

// New opens (creating if needed) the notification store at dbPath.
func New(dbPath string, m *metrics.Metrics, log logging.Logger) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("notification store: db path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("notification store: create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("notification store: open db: %w", err)
	}

	store := &Store{db: db, log: log.With("component", "sink"), metrics: m}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Shutdown closes the underlying SQLite connection.
func (s *Store) Shutdown() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("notification store: set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("notification store: create schema: %w", err)
	}
	return nil
}

// SetClosedHandler registers the callback invoked when a record is closed
// from the platform side (user dismissal). The daemon routes it onto the
// dispatch loop.
func (s *Store) SetClosedHandler(handler func(id uint32, reason ports.CloseReason)) {
	s.onClosed = handler
}

// Publish creates or updates a notification record and returns its id.
func (s *Store) Publish(rec *ports.NotificationRecord) (uint32, error) {
	id, err := s.write(rec, "notification", true)
	if err != nil {
		s.metrics.PublishFailures.Inc()
		return 0, err
	}
	s.metrics.Published.Inc()
	return id, nil
}

// PublishPreview records a transient preview banner. Previews are stored
// already closed; they have no persistent identity.
func (s *Store) PublishPreview(rec *ports.NotificationRecord) error {
	if _, err := s.write(rec, "preview", false); err != nil {
		s.metrics.PublishFailures.Inc()
		return err
	}
	s.metrics.Published.Inc()
	return nil
}

func (s *Store) write(rec *ports.NotificationRecord, kind string, open bool) (uint32, error) {
	actions, err := json.Marshal(rec.Actions)
	if err != nil {
		return 0, fmt.Errorf("notification store: encode actions: %w", err)
	}
	timestamp := ""
	if !rec.Timestamp.IsZero() {
		timestamp = rec.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if rec.ReplacesID != 0 {
		res, err := s.db.Exec(`
			UPDATE notifications
			SET app_name = ?, category = ?, summary = ?, body = ?, item_count = ?,
			    timestamp = ?, hidden = ?, actions = ?, member_data = ?, updated_at = ?
			WHERE id = ? AND open = 1`,
			rec.AppName, rec.Category, rec.Summary, rec.Body, rec.ItemCount,
			timestamp, boolToInt(rec.Hidden), string(actions), rec.MemberData, now,
			int64(rec.ReplacesID))
		if err != nil {
			return 0, fmt.Errorf("notification store: update record: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("notification store: update rows affected: %w", err)
		}
		if affected > 0 {
			return rec.ReplacesID, nil
		}
		// The record to replace is gone; fall through and publish fresh.
	}

	res, err := s.db.Exec(`
		INSERT INTO notifications
			(kind, app_name, category, summary, body, item_count, timestamp, hidden, actions, member_data, open, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		kind, rec.AppName, rec.Category, rec.Summary, rec.Body, rec.ItemCount,
		timestamp, boolToInt(rec.Hidden), string(actions), rec.MemberData, boolToInt(open), now)
	if err != nil {
		return 0, fmt.Errorf("notification store: insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("notification store: read insert id: %w", err)
	}
	return uint32(id), nil
}

// CloseRecord closes a published record by id with a reason. It reports
// whether an open record was actually closed.
func (s *Store) CloseRecord(id uint32, reason ports.CloseReason) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.Exec(`
		UPDATE notifications SET open = 0, close_reason = ?, updated_at = ? WHERE id = ? AND open = 1`,
		string(reason), now, int64(id))
	if err != nil {
		return false, fmt.Errorf("notification store: close record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("notification store: close rows affected: %w", err)
	}
	return affected > 0, nil
}

// Close implements the sink's daemon-side close. Closing an unknown or
// already closed record is a no-op.
func (s *Store) Close(id uint32) error {
	_, err := s.CloseRecord(id, ports.CloseRequested)
	return err
}

// Dismiss closes a record on the user's behalf and raises the closed
// signal toward the registry.
func (s *Store) Dismiss(id uint32) error {
	closed, err := s.CloseRecord(id, ports.CloseDismissed)
	if err != nil {
		return err
	}
	if !closed {
		return fmt.Errorf("notification store: dismiss: %w: id %d", ErrRecordNotFound, id)
	}
	if s.onClosed != nil {
		s.onClosed(id, ports.CloseDismissed)
	}
	return nil
}

// OpenRecords returns every still-open notification record.
func (s *Store) OpenRecords() ([]ports.StoredRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, category, summary, body, item_count, timestamp, hidden, member_data
		FROM notifications WHERE open = 1 AND kind = 'notification' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("notification store: list open records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []ports.StoredRecord
	for rows.Next() {
		var (
			id        int64
			rec       ports.StoredRecord
			timestamp string
			hidden    int
		)
		if err := rows.Scan(&id, &rec.Category, &rec.Summary, &rec.Body, &rec.ItemCount, &timestamp, &hidden, &rec.MemberData); err != nil {
			return nil, fmt.Errorf("notification store: scan record: %w", err)
		}
		rec.ID = uint32(id)
		rec.Hidden = hidden != 0
		if timestamp != "" {
			ts, err := time.Parse(time.RFC3339Nano, timestamp)
			if err != nil {
				s.log.Warn("ignoring malformed record timestamp", "id", rec.ID, "timestamp", timestamp)
			} else {
				rec.Timestamp = ts
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notification store: iterate records: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
