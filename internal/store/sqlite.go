package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a single-file backend with the same semantics as Postgres.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies pragmas.
// Migrate must still be called before use.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() { s.db.Close() }

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return err
}

func (s *SQLite) Apply(ctx context.Context, recordID string, value float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nav_records (id, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		recordID, value, at.UTC())
	observe("apply", err)
	if err != nil {
		return &SinkError{Op: "apply", Key: recordID, Err: err}
	}
	return nil
}

func (s *SQLite) Record(ctx context.Context, id string) (Record, error) {
	r := Record{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT value, updated_at FROM nav_records WHERE id = ?`, id,
	).Scan(&r.Value, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

func (s *SQLite) Append(ctx context.Context, e LedgerEntry) (LedgerEntry, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (fund_id, value, recorded_at, label, run_id) VALUES (?, ?, ?, ?, ?)`,
		e.FundID, e.Value, e.Timestamp.UTC(), e.Label, e.RunID)
	if err == nil {
		e.SequenceNo, err = res.LastInsertId()
	}
	observe("append", err)
	if err != nil {
		return LedgerEntry{}, &SinkError{Op: "append", Key: fmt.Sprintf("fund %d", e.FundID), Err: err}
	}
	return e, nil
}

func (s *SQLite) Ledger(ctx context.Context, limit int) ([]LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sequence_no, fund_id, value, recorded_at, label, run_id
		 FROM ledger_entries ORDER BY sequence_no DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.SequenceNo, &e.FundID, &e.Value, &e.Timestamp, &e.Label, &e.RunID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return oldestFirst(entries), rows.Err()
}
