package store

import (
	"context"
	"fmt"
	"time"
)

// RangeReview flags one feature range for re-validation after its record's
// sequence changed.
type RangeReview struct {
	PassID          string
	RecordID        string
	ParticipationID string
	FeatureIndex    int
	RangeIndex      int
	PreviousLength  int
	CurrentLength   int
	Score           float64
	FlaggedAt       time.Time
}

// FlagRange records a review. Flagging the same range twice in one pass is
// a no-op; inserted reports whether a row was added.
func (s *Store) FlagRange(ctx context.Context, r RangeReview) (inserted bool, err error) {
	if r.FlaggedAt.IsZero() {
		r.FlaggedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO range_reviews
		(pass_id, record_id, participation_id, feature_index, range_index,
		 previous_length, current_length, score, flagged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pass_id, participation_id, feature_index, range_index) DO NOTHING
	`,
		r.PassID,
		r.RecordID,
		r.ParticipationID,
		r.FeatureIndex,
		r.RangeIndex,
		r.PreviousLength,
		r.CurrentLength,
		r.Score,
		formatTime(r.FlaggedAt),
	)
	if err != nil {
		return false, fmt.Errorf("flag range: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("flag range: %w", err)
	}
	return n == 1, nil
}

// RangeReviews returns the reviews flagged for a record.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) RangeReviews(ctx context.Context, recordID string) ([]RangeReview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pass_id, record_id, participation_id, feature_index, range_index,
			previous_length, current_length, score, flagged_at
		FROM range_reviews
		WHERE record_id = ?
		ORDER BY seq ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query range reviews: %w", err)
	}
	defer rows.Close()

	reviews := []RangeReview{}
	for rows.Next() {
		var r RangeReview
		var flagged string
		if err := rows.Scan(&r.PassID, &r.RecordID, &r.ParticipationID, &r.FeatureIndex, &r.RangeIndex,
			&r.PreviousLength, &r.CurrentLength, &r.Score, &flagged); err != nil {
			return nil, fmt.Errorf("scan range review: %w", err)
		}
		if r.FlaggedAt, err = parseTime(flagged); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate range reviews: %w", err)
	}
	return reviews, nil
}
