package reconcile

import (
	"context"
	"fmt"

	"github.com/roach88/protrecon/internal/merge"
	"github.com/roach88/protrecon/internal/protein"
)

// pass holds the state of one Run. processed is the only state shared
// between batches.
type pass struct {
	d        *Driver
	id       string
	selector merge.Selector
	queue    *outcomeQueue
	summary  *PassSummary

	processed map[string]bool
}

func (p *pass) run(ctx context.Context, ids []string) error {
	size := p.d.cfg.BatchSize
	for start := 0; start < len(ids); start += size {
		if err := ctx.Err(); err != nil {
			p.summary.Stopped = true
			return err
		}
		if p.d.stop.Load() {
			p.summary.Stopped = true
			p.d.logger.Info("reconciliation pass stop requested", "pass", p.id, "remaining", len(ids)-start)
			return nil
		}
		end := min(start+size, len(ids))
		if err := p.runBatch(ctx, ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// runBatch processes one batch inside a persistence unit. Only errors that
// abort the pass are returned.
func (p *pass) runBatch(ctx context.Context, ids []string) error {
	todo := make([]string, 0, len(ids))
	for _, id := range ids {
		if p.processed[id] {
			continue
		}
		p.processed[id] = true
		todo = append(todo, id)
	}
	if len(todo) == 0 {
		return nil
	}

	p.summary.Batches++
	started := p.d.now()
	b := newBatch(p, todo)

	err := p.d.store.BeginUnit(ctx)
	if err != nil {
		err = fmt.Errorf("begin unit: %w", err)
	} else {
		err = b.process(ctx)
		if err == nil {
			err = p.d.store.CommitUnit()
		} else if rbErr := p.d.store.RollbackUnit(); rbErr != nil {
			p.d.logger.Error("rollback failed", "pass", p.id, "error", rbErr)
		}
	}
	elapsed := p.d.now().Sub(started)

	if err == nil {
		p.publish(b.pending)
		p.d.batchFinished(true, elapsed)
		p.d.logger.Debug("batch committed",
			"pass", p.id,
			"records", len(todo),
			"outcomes", len(b.pending),
		)
		return nil
	}

	p.summary.FailedBatches++
	p.publish(b.skipAll(err))
	p.d.batchFinished(false, elapsed)

	if protein.IsInvariantViolation(err) {
		return err
	}
	p.d.logger.Warn("batch rolled back",
		"pass", p.id,
		"records", len(b.touched),
		"first", todo[0],
		"error", err,
	)
	return nil
}

// publish stamps outcomes and hands them to the dispatcher.
func (p *pass) publish(outcomes []Outcome) {
	if len(outcomes) == 0 {
		return
	}
	for i := range outcomes {
		outcomes[i].Seq = p.d.clock.Next()
		outcomes[i].PassID = p.id
		p.summary.Outcomes[outcomes[i].Kind]++
		if outcomes[i].Terminal() {
			p.summary.Terminal++
		}
		p.d.outcomeEmitted(outcomes[i].Kind)
	}
	p.queue.Enqueue(outcomes...)
}
