package nav

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/web3-frozen/nav-oracle/internal/metrics"
	"github.com/web3-frozen/nav-oracle/internal/store"
)

const (
	defaultConcurrency   = 8
	defaultPublishedTTL  = 5 * time.Minute
	defaultRunLockTTL    = 10 * time.Minute
	defaultAlertCooldown = time.Hour
)

// AlertFunc delivers an operator alert.
type AlertFunc func(ctx context.Context, message string) error

// Cache is the shared state used across replicas. A nil Cache disables the
// published-figure cache, the cross-replica run lock and alert deduplication.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) error
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Clear(ctx context.Context, key string) error
}

// Fund is one wallet whose portfolio value is recorded per run. Addend, if
// set, is added to the applied value and counts as zero when it fails.
type Fund struct {
	ID       int
	Name     string
	RecordID string
	Source   Source
	Addend   Source
}

// ValidatorTarget records the validator ETH balance.
type ValidatorTarget struct {
	FundID   int
	RecordID string
	Label    string
	Balance  Source
}

// NavTarget is where the composed NAV is written.
type NavTarget struct {
	RecordID string
	FundID   int
	Label    string
}

// Mirror copies a sheet figure into a record.
type Mirror struct {
	RecordID string
	Source   Source
}

// SnapshotRange is one figure appended to the ledger by RunSnapshot.
type SnapshotRange struct {
	Label  string
	Source Source
}

// Settings is the fully wired engine configuration. Nil sources are
// treated as not configured.
type Settings struct {
	Funds     []Fund
	Validator *ValidatorTarget
	Price     Source

	NavAddress   string
	NavSource    Source
	NavMinSource Source
	DeFi         Source
	Nav          NavTarget

	Mirrors []Mirror

	SnapshotFundID int
	Snapshot       []SnapshotRange
	SnapshotZone   *time.Location

	Published    Source
	PublishedTTL time.Duration

	RunInterval   time.Duration
	RunLockTTL    time.Duration
	AlertCooldown time.Duration
	Concurrency   int
}

// Engine runs aggregations and serves NAV reads.
type Engine struct {
	settings Settings
	sink     store.Sink
	cache    Cache
	logger   *slog.Logger
	alertFn  AlertFunc

	now   func() time.Time
	newID func() string

	fullMu sync.Mutex
	snapMu sync.Mutex

	mu           sync.RWMutex
	lastFull     *RunReport
	lastSnapshot *RunReport
}

func NewEngine(s Settings, sink store.Sink, c Cache, logger *slog.Logger, alertFn AlertFunc) *Engine {
	if s.Concurrency <= 0 {
		s.Concurrency = defaultConcurrency
	}
	if s.PublishedTTL <= 0 {
		s.PublishedTTL = defaultPublishedTTL
	}
	if s.RunLockTTL <= 0 {
		s.RunLockTTL = defaultRunLockTTL
	}
	if s.AlertCooldown <= 0 {
		s.AlertCooldown = defaultAlertCooldown
	}
	if s.SnapshotZone == nil {
		s.SnapshotZone = time.UTC
	}
	return &Engine{
		settings: s,
		sink:     sink,
		cache:    c,
		logger:   logger,
		alertFn:  alertFn,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// LastRuns returns the most recent full and snapshot reports, either of
// which may be nil.
func (e *Engine) LastRuns() (full, snapshot *RunReport) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastFull, e.lastSnapshot
}

// SourceIDs lists every configured source.
func (e *Engine) SourceIDs() []string {
	var b batch
	e.addAll(&b)
	ids := make([]string, 0, len(b.sources))
	seen := make(map[string]bool)
	for _, s := range b.sources {
		if !seen[s.ID()] {
			seen[s.ID()] = true
			ids = append(ids, s.ID())
		}
	}
	return ids
}

func (e *Engine) addAll(b *batch) {
	s := e.settings
	for _, f := range s.Funds {
		b.add(f.Source)
		b.add(f.Addend)
	}
	if s.Validator != nil {
		b.add(s.Validator.Balance)
	}
	b.add(s.Price)
	b.add(s.NavSource)
	b.add(s.NavMinSource)
	b.add(s.DeFi)
	for _, m := range s.Mirrors {
		b.add(m.Source)
	}
	for _, r := range s.Snapshot {
		b.add(r.Source)
	}
	b.add(s.Published)
}

// batch collects the sources of one run so they can be fetched together.
// add returns the reading index, or -1 for an unconfigured source.
type batch struct {
	sources []Source
}

func (b *batch) add(src Source) int {
	if src == nil {
		return -1
	}
	b.sources = append(b.sources, src)
	return len(b.sources) - 1
}

func pick(readings []SourceReading, i int) (SourceReading, bool) {
	if i < 0 || i >= len(readings) {
		return SourceReading{}, false
	}
	return readings[i], true
}

// readAll fetches every source concurrently and waits for all of them to
// reach a terminal state.
func (e *Engine) readAll(ctx context.Context, srcs []Source) []SourceReading {
	out := make([]SourceReading, len(srcs))
	var g errgroup.Group
	g.SetLimit(e.settings.Concurrency)
	for i, src := range srcs {
		i, src := i, src
		g.Go(func() error {
			out[i] = e.read(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Engine) read(ctx context.Context, src Source) SourceReading {
	r := Read(ctx, src, e.now)
	if r.Error != nil {
		metrics.SourceReadingsTotal.WithLabelValues(r.SourceID, string(r.Error.Kind)).Inc()
		e.logger.Warn("source reading failed", "source", r.SourceID, "kind", r.Error.Kind, "error", r.Error.Message)
		return r
	}
	metrics.SourceReadingsTotal.WithLabelValues(r.SourceID, "ok").Inc()
	metrics.SourceLastSuccess.WithLabelValues(r.SourceID).Set(float64(r.FetchedAt.Unix()))
	metrics.SourceValue.WithLabelValues(r.SourceID, string(r.Unit)).Set(*r.Quantity)
	e.logger.Debug("source reading", "source", r.SourceID, "value", *r.Quantity, "unit", r.Unit)
	return r
}

func (e *Engine) observeNav(operation string, res NavResult) {
	if res.TotalUSD != nil {
		metrics.NavTotalUSD.WithLabelValues(operation).Set(*res.TotalUSD)
	}
	if res.Degraded {
		metrics.NavDegradedTotal.WithLabelValues(operation).Inc()
	}
}
