package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() { s.pool.Close() }

func (s *Postgres) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

// --- Records ---

func (s *Postgres) Apply(ctx context.Context, recordID string, value float64, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO nav_records (id, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		recordID, value, at.UTC())
	observe("apply", err)
	if err != nil {
		return &SinkError{Op: "apply", Key: recordID, Err: err}
	}
	return nil
}

func (s *Postgres) Record(ctx context.Context, id string) (Record, error) {
	r := Record{ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT value, updated_at FROM nav_records WHERE id = $1`, id,
	).Scan(&r.Value, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

// --- Ledger ---

func (s *Postgres) Append(ctx context.Context, e LedgerEntry) (LedgerEntry, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ledger_entries (fund_id, value, recorded_at, label, run_id)
		 VALUES ($1, $2, $3, $4, $5) RETURNING sequence_no`,
		e.FundID, e.Value, e.Timestamp.UTC(), e.Label, e.RunID,
	).Scan(&e.SequenceNo)
	observe("append", err)
	if err != nil {
		return LedgerEntry{}, &SinkError{Op: "append", Key: fmt.Sprintf("fund %d", e.FundID), Err: err}
	}
	return e, nil
}

// Ledger returns the most recent limit entries in write order.
func (s *Postgres) Ledger(ctx context.Context, limit int) ([]LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sequence_no, fund_id, value, recorded_at, label, run_id
		 FROM ledger_entries ORDER BY sequence_no DESC LIMIT $1`, limit)
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
