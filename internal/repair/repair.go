// Package repair reacts to confirmed sequence changes by flagging the
// record's feature ranges for curator review.
package repair

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/roach88/protrecon/internal/reconcile"
	"github.com/roach88/protrecon/internal/store"
)

// ReviewStore is the part of store.Store Flagger writes to.
type ReviewStore interface {
	FlagRange(ctx context.Context, r store.RangeReview) (bool, error)
}

// Flagger flags every range of every feature on the changed record's
// participations. Ranges are positions on the old sequence; they cannot be
// trusted until someone re-validates them against the new one.
type Flagger struct {
	store  ReviewStore
	logger *slog.Logger
	now    func() time.Time
}

// NewFlagger creates a Flagger. A nil logger uses slog.Default().
func NewFlagger(s ReviewStore, logger *slog.Logger) *Flagger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flagger{store: s, logger: logger, now: time.Now}
}

// Repair implements reconcile.RangeRepairer.
func (f *Flagger) Repair(ctx context.Context, req reconcile.RepairRequest) error {
	if req.Record == nil {
		return fmt.Errorf("repair request for pass %s has no record", req.PassID)
	}

	prevLen := utf8.RuneCountInString(req.Previous)
	currLen := utf8.RuneCountInString(req.Current)
	at := f.now()

	flagged := 0
	for _, p := range req.Record.Participations() {
		for fi, feat := range p.Features {
			for ri := range feat.Ranges {
				inserted, err := f.store.FlagRange(ctx, store.RangeReview{
					PassID:          req.PassID,
					RecordID:        req.Record.ID,
					ParticipationID: p.ID,
					FeatureIndex:    fi,
					RangeIndex:      ri,
					PreviousLength:  prevLen,
					CurrentLength:   currLen,
					Score:           req.Score,
					FlaggedAt:       at,
				})
				if err != nil {
					return fmt.Errorf("flag %s feature %d range %d: %w", p.ID, fi, ri, err)
				}
				if inserted {
					flagged++
				}
			}
		}
	}

	if flagged > 0 {
		f.logger.Info("feature ranges flagged for review",
			"record", req.Record.ID,
			"ranges", flagged,
			"score", req.Score,
		)
	}
	return nil
}

// Recorder keeps repair requests in memory.
type Recorder struct {
	mu       sync.Mutex
	requests []reconcile.RepairRequest
}

// Repair implements reconcile.RangeRepairer.
func (r *Recorder) Repair(_ context.Context, req reconcile.RepairRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return nil
}

// Requests returns a copy of the recorded requests.
func (r *Recorder) Requests() []reconcile.RepairRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reconcile.RepairRequest, len(r.requests))
	copy(out, r.requests)
	return out
}
