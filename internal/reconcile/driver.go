package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/protrecon/internal/merge"
	"github.com/roach88/protrecon/internal/protein"
)

// Persistence is the storage the driver reconciles. Record reads and writes
// between BeginUnit and CommitUnit/RollbackUnit form one all-or-nothing
// unit. Implemented by store.Store.
type Persistence interface {
	AllIDs(ctx context.Context) ([]string, error)
	LoadBatch(ctx context.Context, ids []string) ([]*protein.CuratedRecord, error)
	Save(ctx context.Context, r *protein.CuratedRecord) error
	DeleteRecord(ctx context.Context, id string) error
	DeleteParticipation(ctx context.Context, id string) error

	BeginUnit(ctx context.Context) error
	CommitUnit() error
	RollbackUnit() error
}

// Resolver turns an accession into a match outcome. Implemented by
// resolve.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, accession string, taxID int) (protein.MatchOutcome, error)
}

// Merger folds a duplicate group. Implemented by merge.Merger.
type Merger interface {
	Merge(group *protein.DuplicateGroup) (*protein.MergeReport, error)
}

// Observer receives pass measurements. Implemented by metrics.Collector.
type Observer interface {
	OutcomeEmitted(kind OutcomeKind)
	BatchFinished(committed bool, elapsed time.Duration)
	SequenceScored(score float64)
}

// ErrPassRunning is returned by Run while another pass is in progress.
var ErrPassRunning = errors.New("reconciliation pass already running")

// PassSummary reports what a pass did.
type PassSummary struct {
	PassID        string              `json:"pass_id"`
	Records       int                 `json:"records"`
	Batches       int                 `json:"batches"`
	FailedBatches int                 `json:"failed_batches"`
	Outcomes      map[OutcomeKind]int `json:"outcomes"`
	Terminal      int                 `json:"terminal"`

	Delivered        int64 `json:"delivered"`
	Repairs          int64 `json:"repairs"`
	DispatchFailures int64 `json:"dispatch_failures"`

	Stopped    bool      `json:"stopped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Driver runs reconciliation passes.
//
// Thread-safety model:
//   - Run(): one pass at a time; a concurrent call returns ErrPassRunning
//   - RequestStop(): safe from any goroutine
type Driver struct {
	store    Persistence
	resolver Resolver
	merger   Merger
	selector merge.Selector
	cfg      Config

	ids      IDGenerator
	now      func() time.Time
	clock    *Clock
	auditor  Auditor
	repairer RangeRepairer
	logger   *slog.Logger
	observer Observer

	stop    atomic.Bool
	running atomic.Bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithConfig sets the pass settings. Defaults to DefaultConfig().
func WithConfig(cfg Config) Option {
	return func(d *Driver) {
		d.cfg = cfg
	}
}

// WithSelector overrides the canonical selection policy named in the
// config.
func WithSelector(s merge.Selector) Option {
	return func(d *Driver) {
		d.selector = s
	}
}

// WithMerger sets the duplicate merger. Defaults to merge.New().
func WithMerger(m Merger) Option {
	return func(d *Driver) {
		if m != nil {
			d.merger = m
		}
	}
}

// WithAuditor sets the collaborator receiving every outcome.
func WithAuditor(a Auditor) Option {
	return func(d *Driver) {
		d.auditor = a
	}
}

// WithRangeRepairer sets the collaborator invoked for repairable sequence
// changes.
func WithRangeRepairer(r RangeRepairer) Option {
	return func(d *Driver) {
		d.repairer = r
	}
}

// WithIDGenerator sets the generator for pass ids and created record ids.
// Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(d *Driver) {
		if g != nil {
			d.ids = g
		}
	}
}

// WithNow sets the wall clock used for creation times.
func WithNow(now func() time.Time) Option {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(d *Driver) {
		d.observer = o
	}
}

// New creates a driver over store, resolving accessions with resolver.
func New(store Persistence, resolver Resolver, opts ...Option) *Driver {
	d := &Driver{
		store:    store,
		resolver: resolver,
		cfg:      DefaultConfig(),
		ids:      UUIDv7Generator{},
		now:      time.Now,
		clock:    NewClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.merger == nil {
		d.merger = merge.New(merge.WithLogger(d.logger))
	}
	return d
}

// RequestStop asks the running pass to stop before its next batch. A batch
// already entered always completes.
func (d *Driver) RequestStop() {
	d.stop.Store(true)
}

// Run executes one reconciliation pass.
//
// Batch failures are absorbed: the batch is rolled back, its records are
// reported as skipped and the pass continues with the next batch. Invariant
// violations abort the pass and are returned together with the summary of
// the work done so far. Context cancellation stops the pass between
// batches.
func (d *Driver) Run(ctx context.Context) (*PassSummary, error) {
	if err := d.cfg.check(); err != nil {
		return nil, err
	}
	selector := d.selector
	if selector == nil {
		s, err := merge.SelectorByName(d.cfg.CanonicalPolicy)
		if err != nil {
			return nil, fmt.Errorf("reconcile: %w", err)
		}
		selector = s
	}
	if !d.running.CompareAndSwap(false, true) {
		return nil, ErrPassRunning
	}
	defer d.running.Store(false)
	d.stop.Store(false)

	summary := &PassSummary{
		PassID:    d.ids.Generate(),
		Outcomes:  make(map[OutcomeKind]int),
		StartedAt: d.now(),
	}

	ids, err := d.store.AllIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list record ids: %w", err)
	}
	summary.Records = len(ids)

	d.logger.Info("reconciliation pass starting",
		"pass", summary.PassID,
		"records", len(ids),
		"batch_size", d.cfg.BatchSize,
	)

	queue := newOutcomeQueue()
	disp := newDispatcher(queue, d.auditor, d.repairer, d.logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Outcomes of committed batches are delivered even when the pass
		// is cancelled.
		_ = disp.run(context.WithoutCancel(ctx))
	}()

	p := &pass{
		d:         d,
		id:        summary.PassID,
		selector:  selector,
		queue:     queue,
		summary:   summary,
		processed: make(map[string]bool, len(ids)),
	}
	runErr := p.run(ctx, ids)

	queue.Close()
	<-done

	summary.Delivered = disp.delivered.Load()
	summary.Repairs = disp.repairs.Load()
	summary.DispatchFailures = disp.failures.Load()
	summary.FinishedAt = d.now()

	attrs := []any{
		"pass", summary.PassID,
		"batches", summary.Batches,
		"failed_batches", summary.FailedBatches,
		"terminal", summary.Terminal,
		"stopped", summary.Stopped,
	}
	if runErr != nil {
		d.logger.Error("reconciliation pass aborted", append(attrs, "error", runErr)...)
	} else {
		d.logger.Info("reconciliation pass finished", attrs...)
	}
	return summary, runErr
}

func (d *Driver) outcomeEmitted(kind OutcomeKind) {
	if d.observer != nil {
		d.observer.OutcomeEmitted(kind)
	}
}

func (d *Driver) batchFinished(committed bool, elapsed time.Duration) {
	if d.observer != nil {
		d.observer.BatchFinished(committed, elapsed)
	}
}

func (d *Driver) sequenceScored(score float64) {
	if d.observer != nil {
		d.observer.SequenceScored(score)
	}
}
