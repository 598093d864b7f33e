package history

import (
	"context"
	"database/sql"
	"time"

	"git.home.luguber.info/inful/feedbot/internal/foundation/errors"

	_ "modernc.org/sqlite"
)

// DefaultLimit bounds ForOwner when the caller passes a non-positive limit.
const DefaultLimit = 20

// SQLiteLog implements Log using SQLite.
type SQLiteLog struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the history database at dbPath.
// Use ":memory:" for an in-memory database.
func OpenSQLite(dbPath string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryHistory, ErrDatabaseOpenFailed.Message()).
			WithContext("path", dbPath).Build()
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	log := &SQLiteLog{db: db}
	if err := log.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.CategoryHistory, ErrInitializeSchemaFailed.Message()).
			WithContext("path", dbPath).Build()
	}
	return log, nil
}

func (l *SQLiteLog) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pet_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		at_unix_nano INTEGER NOT NULL,
		detail TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_pet_events_owner ON pet_events(owner_id, seq);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Append adds a new event to the log.
func (l *SQLiteLog) Append(ctx context.Context, e Event) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO pet_events (id, owner_id, kind, at_unix_nano, detail) VALUES (?, ?, ?, ?, ?)",
		e.ID, e.OwnerID, string(e.Kind), e.At.UnixNano(), e.Detail,
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryHistory, ErrAppendFailed.Message()).
			WithContext("owner_id", e.OwnerID).Build()
	}
	return nil
}

// ForOwner returns the newest events of an owner, newest first.
func (l *SQLiteLog) ForOwner(ctx context.Context, ownerID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := l.db.QueryContext(ctx,
		"SELECT id, owner_id, kind, at_unix_nano, detail FROM pet_events WHERE owner_id = ? ORDER BY seq DESC LIMIT ?",
		ownerID, limit,
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryHistory, ErrQueryFailed.Message()).Build()
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			e    Event
			kind string
			at   int64
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &kind, &at, &e.Detail); err != nil {
			return nil, errors.WrapError(err, errors.CategoryHistory, ErrQueryFailed.Message()).Build()
		}
		e.Kind = Kind(kind)
		e.At = time.Unix(0, at)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryHistory, ErrQueryFailed.Message()).Build()
	}
	return events, nil
}

// Close closes the database connection.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
