package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Log is the append-only transaction history, backed by SQLite.
type Log struct {
	db *sql.DB
}

// Open creates or opens a history database at the given path.
// Use ":memory:" for an ephemeral log. Applies required pragmas and the
// schema automatically; safe to call on an existing database.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to history database: %w", err)
	}

	// SQLite supports one writer at a time; limit connections so the
	// append path never hits SQLITE_BUSY. A single connection is also what
	// keeps a ":memory:" database alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Append inserts one record. Records are never updated after insertion.
// A zero Timestamp is filled with the current time before writing.
func (l *Log) Append(ctx context.Context, rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	items := rec.Items
	if items == nil {
		items = []string{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("append record: marshal items: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO records (seq, token, kind, amount, items, note, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Seq,
		rec.Token,
		string(rec.Kind),
		rec.Amount,
		string(itemsJSON),
		rec.Note,
		rec.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}

	return nil
}

// Recent returns the last n records, most recent first.
// Ordering is by seq descending, id descending as a tiebreaker - never by
// timestamp. n <= 0 returns an empty slice.
func (l *Log) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return []Record{}, nil
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, token, kind, amount, items, note, ts
		FROM records
		ORDER BY seq DESC, id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent records: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, n)
	for rows.Next() {
		var (
			rec       Record
			kind      string
			itemsJSON string
			ts        string
		)
		if err := rows.Scan(&rec.Seq, &rec.Token, &kind, &rec.Amount, &itemsJSON, &rec.Note, &ts); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Kind = Kind(kind)
		if err := json.Unmarshal([]byte(itemsJSON), &rec.Items); err != nil {
			return nil, fmt.Errorf("unmarshal record items: %w", err)
		}
		if len(rec.Items) == 0 {
			rec.Items = nil
		}
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse record timestamp: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return out, nil
}

// Count returns the total number of records in the log.
func (l *Log) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Clear removes every record. Administrative and irreversible.
func (l *Log) Clear(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	return nil
}
