package reconcile

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/protrecon/internal/protein"
)

// Auditor receives every published outcome.
type Auditor interface {
	Record(ctx context.Context, o Outcome) error
}

// RepairRequest asks for the position-dependent annotations of a record to
// be invalidated after its sequence changed.
type RepairRequest struct {
	PassID   string
	Record   *protein.CuratedRecord
	Previous string
	Current  string
	Score    float64
}

// RangeRepairer invalidates feature ranges after a confirmed sequence
// change. It is never called for blocked changes.
type RangeRepairer interface {
	Repair(ctx context.Context, req RepairRequest) error
}

// dispatcher drains the outcome queue and fans outcomes out to the
// collaborators. It is the only goroutine calling them.
//
// Collaborator failures are logged and counted; they never reach the
// driver, whose batch has already committed.
type dispatcher struct {
	queue    *outcomeQueue
	auditor  Auditor
	repairer RangeRepairer
	logger   *slog.Logger

	delivered atomic.Int64
	repairs   atomic.Int64
	failures  atomic.Int64
}

func newDispatcher(q *outcomeQueue, a Auditor, r RangeRepairer, logger *slog.Logger) *dispatcher {
	return &dispatcher{queue: q, auditor: a, repairer: r, logger: logger}
}

// run processes outcomes until the queue is closed and drained, or ctx is
// cancelled.
func (d *dispatcher) run(ctx context.Context) error {
	for {
		o, ok := d.queue.TryDequeue()
		if ok {
			d.dispatch(ctx, o)
			continue
		}

		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping: context cancelled", "pending", d.queue.Len())
			return ctx.Err()

		case <-d.queue.Wait():
			// The signal channel closes with the queue.
			if d.queue.Drained() {
				return nil
			}
		}
	}
}

func (d *dispatcher) dispatch(ctx context.Context, o Outcome) {
	if d.auditor != nil {
		if err := d.auditor.Record(ctx, o); err != nil {
			d.failures.Add(1)
			d.logger.Error("audit failed",
				"seq", o.Seq,
				"kind", string(o.Kind),
				"record", o.RecordID,
				"error", err,
			)
		}
	}
	d.delivered.Add(1)

	if d.repairer == nil || !o.Change.Repairable() || o.Record == nil {
		return
	}
	req := RepairRequest{
		PassID:   o.PassID,
		Record:   o.Record,
		Previous: o.Change.Previous,
		Current:  o.Change.Current,
	}
	if o.Change.Score != nil {
		req.Score = *o.Change.Score
	}
	if err := d.repairer.Repair(ctx, req); err != nil {
		d.failures.Add(1)
		d.logger.Error("range repair failed",
			"seq", o.Seq,
			"record", o.RecordID,
			"error", err,
		)
		return
	}
	d.repairs.Add(1)
}
