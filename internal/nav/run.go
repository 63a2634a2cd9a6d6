package nav

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/web3-frozen/nav-oracle/internal/metrics"
	"github.com/web3-frozen/nav-oracle/internal/store"
)

// RunKind names an aggregation run.
type RunKind string

const (
	RunKindFull     RunKind = "full"
	RunKindSnapshot RunKind = "snapshot"
)

// WriteOutcome is one sink call made during a run.
type WriteOutcome struct {
	Op         string  `json:"op"`
	Key        string  `json:"key"`
	Value      float64 `json:"value"`
	Label      string  `json:"label,omitempty"`
	SequenceNo int64   `json:"sequence_no,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// RunReport describes everything a run read and wrote.
type RunReport struct {
	RunID      string          `json:"run_id"`
	Kind       RunKind         `json:"kind"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Nav        *NavResult      `json:"nav,omitempty"`
	Readings   []SourceReading `json:"readings"`
	Writes     []WriteOutcome  `json:"writes"`
}

// FailedReadings returns the readings that carry an error.
func (r *RunReport) FailedReadings() []SourceReading {
	var out []SourceReading
	for _, rd := range r.Readings {
		if rd.Error != nil {
			out = append(out, rd)
		}
	}
	return out
}

// FailedWrites counts sink calls that returned an error.
func (r *RunReport) FailedWrites() int {
	n := 0
	for _, w := range r.Writes {
		if w.Error != "" {
			n++
		}
	}
	return n
}

// Appended counts successful ledger appends.
func (r *RunReport) Appended() int {
	n := 0
	for _, w := range r.Writes {
		if w.Op == "append" && w.Error == "" {
			n++
		}
	}
	return n
}

func (r *RunReport) status() string {
	switch {
	case r.FailedWrites() > 0, r.Nav != nil && r.Nav.TotalUSD == nil:
		return "failed"
	case len(r.FailedReadings()) > 0:
		return "degraded"
	default:
		return "ok"
	}
}

// writer issues sink calls for one run, recording every outcome. Failures
// are collected, never rolled back.
type writer struct {
	sink   store.Sink
	runID  string
	at     time.Time
	logger *slog.Logger
	writes []WriteOutcome
	errs   []error
}

func (w *writer) apply(ctx context.Context, recordID string, value float64) {
	out := WriteOutcome{Op: "apply", Key: recordID, Value: value}
	if err := w.sink.Apply(ctx, recordID, value, w.at); err != nil {
		out.Error = err.Error()
		w.errs = append(w.errs, err)
		w.logger.Error("apply failed", "record_id", recordID, "value", value, "error", err)
	} else {
		w.logger.Info("applied", "record_id", recordID, "value", value)
	}
	w.writes = append(w.writes, out)
}

func (w *writer) append(ctx context.Context, fundID int, value float64, label string) {
	out := WriteOutcome{Op: "append", Key: strconv.Itoa(fundID), Value: value, Label: label}
	entry, err := w.sink.Append(ctx, store.LedgerEntry{
		FundID:    fundID,
		Value:     value,
		Timestamp: w.at,
		Label:     label,
		RunID:     w.runID,
	})
	if err != nil {
		out.Error = err.Error()
		w.errs = append(w.errs, err)
		w.logger.Error("append failed", "fund_id", fundID, "value", value, "error", err)
	} else {
		out.SequenceNo = entry.SequenceNo
		w.logger.Info("appended", "fund_id", fundID, "value", value, "label", label, "sequence_no", entry.SequenceNo)
	}
	w.writes = append(w.writes, out)
}

// RunFull fetches every configured source in parallel, then records fund
// values, the validator balance, the composed NAV and mirrored figures. The
// returned error joins every SinkError; upstream failures are reported in
// the RunReport only.
func (e *Engine) RunFull(ctx context.Context) (*RunReport, error) {
	s := e.settings
	if len(s.Funds) == 0 && s.NavSource == nil {
		return nil, &ConfigError{Field: "funds", Msg: "no funds or NAV source configured"}
	}
	if !e.fullMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer e.fullMu.Unlock()

	release, err := e.lockReplicas(ctx, RunKindFull)
	if err != nil {
		return nil, err
	}
	defer release()

	report := &RunReport{RunID: e.newID(), Kind: RunKindFull, StartedAt: e.now()}
	logger := e.logger.With("run_id", report.RunID, "kind", RunKindFull)
	logger.Info("run started")

	var b batch
	fundIdx := make([]int, len(s.Funds))
	addendIdx := make([]int, len(s.Funds))
	for i, f := range s.Funds {
		fundIdx[i] = b.add(f.Source)
		addendIdx[i] = b.add(f.Addend)
	}
	validatorIdx := -1
	if s.Validator != nil {
		validatorIdx = b.add(s.Validator.Balance)
	}
	priceIdx := b.add(s.Price)
	navIdx := b.add(s.NavSource)
	defiIdx := b.add(s.DeFi)
	mirrorIdx := make([]int, len(s.Mirrors))
	for i, m := range s.Mirrors {
		mirrorIdx[i] = b.add(m.Source)
	}

	readings := e.readAll(ctx, b.sources)
	report.Readings = readings

	w := &writer{sink: e.sink, runID: report.RunID, at: e.now(), logger: logger}

	for i, f := range s.Funds {
		r, ok := pick(readings, fundIdx[i])
		if !ok || !r.OK() {
			continue
		}
		w.append(ctx, f.ID, r.Value(), "")
		value := r.Value()
		if a, ok := pick(readings, addendIdx[i]); ok && a.OK() {
			value += a.Value()
		}
		w.apply(ctx, f.RecordID, value)
	}

	validator, hasValidator := pick(readings, validatorIdx)
	if hasValidator && validator.OK() {
		w.append(ctx, s.Validator.FundID, validator.Value(), s.Validator.Label)
		w.apply(ctx, s.Validator.RecordID, validator.Value())
	}

	if mandatory, ok := pick(readings, navIdx); ok {
		var optional []SourceReading
		if d, ok := pick(readings, defiIdx); ok {
			optional = append(optional, d)
		}
		var derived *Derived
		if price, ok := pick(readings, priceIdx); ok && hasValidator {
			derived = &Derived{Balance: validator, Price: price}
		}
		res := Compose(w.at, mandatory, optional, derived)
		report.Nav = &res
		e.observeNav("full", res)

		if res.TotalUSD != nil {
			w.apply(ctx, s.Nav.RecordID, *res.TotalUSD)
			w.append(ctx, s.Nav.FundID, *res.TotalUSD, s.Nav.Label)
		} else {
			logger.Error("mandatory source failed, NAV not written", "source", mandatory.SourceID)
		}
	}

	for i, m := range s.Mirrors {
		if r, ok := pick(readings, mirrorIdx[i]); ok && r.OK() {
			w.apply(ctx, m.RecordID, r.Value())
		}
	}

	report.Writes = w.writes
	report.FinishedAt = e.now()
	e.finish(report, logger)
	e.alertFull(ctx, report)
	return report, errors.Join(w.errs...)
}

// RunSnapshot appends one ledger entry per configured snapshot range.
// Ranges that fail to read or parse are reported and skipped.
func (e *Engine) RunSnapshot(ctx context.Context) (*RunReport, error) {
	s := e.settings
	if len(s.Snapshot) == 0 {
		return nil, &ConfigError{Field: "snapshot.ranges", Msg: "no snapshot ranges configured"}
	}
	if !e.snapMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer e.snapMu.Unlock()

	report := &RunReport{RunID: e.newID(), Kind: RunKindSnapshot, StartedAt: e.now()}
	logger := e.logger.With("run_id", report.RunID, "kind", RunKindSnapshot)
	logger.Info("run started")

	srcs := make([]Source, len(s.Snapshot))
	for i, r := range s.Snapshot {
		srcs[i] = r.Source
	}
	readings := e.readAll(ctx, srcs)
	report.Readings = readings

	w := &writer{sink: e.sink, runID: report.RunID, at: e.now(), logger: logger}
	for i, r := range readings {
		if r.OK() {
			w.append(ctx, s.SnapshotFundID, r.Value(), s.Snapshot[i].Label)
		}
	}

	report.Writes = w.writes
	report.FinishedAt = e.now()
	e.finish(report, logger)
	return report, errors.Join(w.errs...)
}

func (e *Engine) finish(report *RunReport, logger *slog.Logger) {
	status := report.status()
	metrics.RunsTotal.WithLabelValues(string(report.Kind), status).Inc()
	metrics.RunDuration.WithLabelValues(string(report.Kind)).Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	e.mu.Lock()
	if report.Kind == RunKindFull {
		e.lastFull = report
	} else {
		e.lastSnapshot = report
	}
	e.mu.Unlock()

	attrs := []any{
		"status", status,
		"readings", len(report.Readings),
		"failed_readings", len(report.FailedReadings()),
		"writes", len(report.Writes),
		"failed_writes", report.FailedWrites(),
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	}
	if report.Nav != nil && report.Nav.TotalUSD != nil {
		attrs = append(attrs, "nav_total_usd", *report.Nav.TotalUSD)
	}
	if status == "ok" {
		logger.Info("run finished", attrs...)
	} else {
		logger.Warn("run finished", attrs...)
	}
}

// lockReplicas takes the cross-replica run lock when a cache is configured.
// A Redis outage does not block runs; the in-process mutex still applies.
func (e *Engine) lockReplicas(ctx context.Context, kind RunKind) (func(), error) {
	if e.cache == nil {
		return func() {}, nil
	}
	key := "run:" + string(kind)
	token, ok, err := e.cache.Lock(ctx, key, e.settings.RunLockTTL)
	if err != nil {
		e.logger.Warn("run lock unavailable, continuing without it", "kind", kind, "error", err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return func() {
		if err := e.cache.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			e.logger.Warn("release run lock failed", "kind", kind, "error", err)
		}
	}, nil
}
