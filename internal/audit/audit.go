// Package audit receives reconciliation outcomes.
//
// Every sink implements reconcile.Auditor. LogSink writes structured log
// lines, StoreSink appends events to the SQLite audit trail, Recorder keeps
// outcomes in memory for tests and one-off commands, and Multi fans one
// outcome out to several sinks.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/protrecon/internal/reconcile"
	"github.com/roach88/protrecon/internal/store"
)

// LogSink logs each outcome. Outcomes a curator has to act on are logged
// at warn level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record implements reconcile.Auditor.
func (s *LogSink) Record(ctx context.Context, o reconcile.Outcome) error {
	attrs := []any{
		"seq", o.Seq,
		"kind", string(o.Kind),
		"record", o.RecordID,
	}
	if o.Accession != "" {
		attrs = append(attrs, "accession", o.Accession)
	}
	if len(o.Candidates) > 0 {
		attrs = append(attrs, "candidates", o.Candidates, "reason", string(o.Reason))
	}
	if o.RemappedFrom != "" {
		attrs = append(attrs, "remapped_from", o.RemappedFrom)
	}
	if c := o.Change; c != nil {
		if c.Score != nil {
			attrs = append(attrs, "score", *c.Score)
		}
		if c.RepairBlocked {
			attrs = append(attrs, "repair_blocked", true)
		}
	}
	if len(o.Participations) > 0 {
		attrs = append(attrs, "participations", o.Participations)
	}
	if o.Message != "" {
		attrs = append(attrs, "message", o.Message)
	}

	level := slog.LevelInfo
	switch o.Kind {
	case reconcile.OutcomeAmbiguous, reconcile.OutcomeDeadAccession, reconcile.OutcomeSkipped:
		level = slog.LevelWarn
	case reconcile.OutcomeUpdatedSequence, reconcile.OutcomeMerged:
		if o.Change != nil && o.Change.Severe {
			level = slog.LevelWarn
		}
	}
	s.logger.Log(ctx, level, "reconciliation outcome", attrs...)
	return nil
}

// Appender is the part of store.Store StoreSink writes to.
type Appender interface {
	AppendAudit(ctx context.Context, e store.AuditEvent) (int64, error)
}

// StoreSink appends outcomes to the audit_events table. The payload is the
// outcome as JSON.
type StoreSink struct {
	store Appender
	now   func() time.Time
}

// NewStoreSink creates a sink over s.
func NewStoreSink(s Appender) *StoreSink {
	return &StoreSink{store: s, now: time.Now}
}

// Record implements reconcile.Auditor.
func (s *StoreSink) Record(ctx context.Context, o reconcile.Outcome) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode outcome %d: %w", o.Seq, err)
	}
	_, err = s.store.AppendAudit(ctx, store.AuditEvent{
		PassID:     o.PassID,
		RecordID:   o.RecordID,
		Kind:       string(o.Kind),
		Terminal:   o.Terminal(),
		Accession:  o.Accession,
		Payload:    string(payload),
		RecordedAt: s.now(),
	})
	return err
}

// Recorder keeps outcomes in memory in delivery order.
type Recorder struct {
	mu       sync.Mutex
	outcomes []reconcile.Outcome
}

// Record implements reconcile.Auditor.
func (r *Recorder) Record(_ context.Context, o reconcile.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

// Outcomes returns a copy of the recorded outcomes.
func (r *Recorder) Outcomes() []reconcile.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reconcile.Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Terminals returns the terminal outcome of each record.
func (r *Recorder) Terminals() map[string]reconcile.OutcomeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]reconcile.OutcomeKind)
	for _, o := range r.outcomes {
		if o.Terminal() {
			out[o.RecordID] = o.Kind
		}
	}
	return out
}

// Multi delivers each outcome to every sink, in order. All sinks run even
// when one fails; the errors are joined.
type Multi []reconcile.Auditor

// Record implements reconcile.Auditor.
func (m Multi) Record(ctx context.Context, o reconcile.Outcome) error {
	var errs []error
	for _, a := range m {
		if a == nil {
			continue
		}
		if err := a.Record(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
