package nav

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/web3-frozen/nav-oracle/internal/store"
)

// fakeSource returns a fixed value or error.
type fakeSource struct {
	id       string
	unit     Unit
	value    float64
	fetchErr error
	parseErr error
	block    chan struct{}
	calls    atomic.Int32
}

func (f *fakeSource) ID() string { return f.id }
func (f *fakeSource) Unit() Unit {
	if f.unit == "" {
		return UnitUSD
	}
	return f.unit
}

func (f *fakeSource) FetchRaw(ctx context.Context) (RawPayload, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return RawPayload(strconv.FormatFloat(f.value, 'f', -1, 64)), nil
}

func (f *fakeSource) Parse(raw RawPayload) (float64, error) {
	if f.parseErr != nil {
		return 0, f.parseErr
	}
	return strconv.ParseFloat(string(raw), 64)
}

// memSink is an in-memory store.Sink.
type memSink struct {
	mu        sync.Mutex
	records   map[string]store.Record
	ledger    []store.LedgerEntry
	seq       int64
	failApply map[string]bool
}

func newMemSink() *memSink {
	return &memSink{records: make(map[string]store.Record), failApply: make(map[string]bool)}
}

func (m *memSink) Apply(_ context.Context, id string, v float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failApply[id] {
		return &store.SinkError{Op: "apply", Key: id, Err: errors.New("disk full")}
	}
	m.records[id] = store.Record{ID: id, Value: v, UpdatedAt: at}
	return nil
}

func (m *memSink) Append(_ context.Context, e store.LedgerEntry) (store.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e.SequenceNo = m.seq
	m.ledger = append(m.ledger, e)
	return e, nil
}

func (m *memSink) value(id string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r.Value, ok
}

// memCache is an in-memory Cache.
type memCache struct {
	mu     sync.Mutex
	values map[string]string
	locks  map[string]string
	once   map[string]bool
}

func newMemCache() *memCache {
	return &memCache{values: map[string]string{}, locks: map[string]string{}, once: map[string]bool{}}
}

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memCache) Lock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.locks[key]; held {
		return "", false, nil
	}
	c.locks[key] = "tok-" + key
	return c.locks[key], true, nil
}

func (c *memCache) Unlock(_ context.Context, key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[key] == token {
		delete(c.locks, key)
	}
	return nil
}

func (c *memCache) MarkOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.once[key] {
		return false, nil
	}
	c.once[key] = true
	return true, nil
}

func (c *memCache) Clear(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.once, key)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
