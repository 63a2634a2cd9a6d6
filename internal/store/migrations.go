package store

const postgresSchema = `
CREATE TABLE IF NOT EXISTS nav_records (
    id TEXT PRIMARY KEY,
    value DOUBLE PRECISION NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    sequence_no BIGSERIAL PRIMARY KEY,
    fund_id INT NOT NULL,
    value DOUBLE PRECISION NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL,
    label TEXT NOT NULL DEFAULT '',
    run_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_ledger_fund_time ON ledger_entries(fund_id, recorded_at);
`

// AUTOINCREMENT keeps sequence numbers from being reused after deletes.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nav_records (
    id TEXT PRIMARY KEY,
    value REAL NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    sequence_no INTEGER PRIMARY KEY AUTOINCREMENT,
    fund_id INTEGER NOT NULL,
    value REAL NOT NULL,
    recorded_at TIMESTAMP NOT NULL,
    label TEXT NOT NULL DEFAULT '',
    run_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_ledger_fund_time ON ledger_entries(fund_id, recorded_at);
`
