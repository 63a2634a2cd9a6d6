// Package store persists NAV figures: a last-write-wins record per record id
// and an append-only ledger. Postgres is the production backend; SQLite
// serves local runs and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/web3-frozen/nav-oracle/internal/metrics"
)

// ErrNotFound is returned by Record for an unknown record id.
var ErrNotFound = errors.New("record not found")

// Record is the current value for one record id.
type Record struct {
	ID        string    `json:"id"`
	Value     float64   `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEntry is one append-only audit row. SequenceNo is assigned by the
// backend and strictly increases in write order.
type LedgerEntry struct {
	SequenceNo int64     `json:"sequence_no"`
	FundID     int       `json:"fund_id"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	Label      string    `json:"label,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
}

// Sink is the write side used by aggregation runs. Apply overwrites
// unconditionally; Append never deduplicates.
type Sink interface {
	Apply(ctx context.Context, recordID string, value float64, at time.Time) error
	Append(ctx context.Context, e LedgerEntry) (LedgerEntry, error)
}

// Backend is a Sink plus reads and lifecycle.
type Backend interface {
	Sink
	Record(ctx context.Context, id string) (Record, error)
	Ledger(ctx context.Context, limit int) ([]LedgerEntry, error)
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close()
}

// SinkError is a write-time persistence failure.
type SinkError struct {
	Op  string
	Key string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// Open picks a backend by URL: "sqlite:<path>" or "file:<path>" opens SQLite,
// anything else is handed to pgx.
func Open(ctx context.Context, databaseURL string) (Backend, error) {
	if path, ok := sqlitePath(databaseURL); ok {
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func sqlitePath(databaseURL string) (string, bool) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return strings.TrimPrefix(strings.TrimPrefix(databaseURL, "sqlite:"), "//"), true
	case strings.HasPrefix(databaseURL, "file:"):
		return databaseURL, true
	default:
		return "", false
	}
}

// oldestFirst reverses entries read newest-first.
func oldestFirst(entries []LedgerEntry) []LedgerEntry {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

func observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SinkWritesTotal.WithLabelValues(op, status).Inc()
}
