package store

import (
	"context"
	"fmt"
	"time"
)

// AuditEvent is one stored reconciliation outcome.
type AuditEvent struct {
	Seq        int64
	PassID     string
	RecordID   string
	Kind       string
	Terminal   bool
	Accession  string
	Payload    string // JSON
	RecordedAt time.Time
}

// AppendAudit appends an audit event. Audit events are written outside any
// open unit so that a rolled-back batch still leaves its skip notices.
func (s *Store) AppendAudit(ctx context.Context, e AuditEvent) (int64, error) {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	if e.Payload == "" {
		e.Payload = "{}"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events
		(pass_id, record_id, kind, terminal, accession, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.PassID,
		e.RecordID,
		e.Kind,
		boolToInt(e.Terminal),
		e.Accession,
		e.Payload,
		formatTime(e.RecordedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("append audit event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append audit event: %w", err)
	}
	return seq, nil
}

// AuditEvents returns the events of a pass in append order. An empty passID
// returns every event.
//
// Returns an empty slice (not nil) if no events exist.
func (s *Store) AuditEvents(ctx context.Context, passID string) ([]AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, pass_id, record_id, kind, terminal, accession, payload, recorded_at
		FROM audit_events
		WHERE ? = '' OR pass_id = ?
		ORDER BY seq ASC
	`, passID, passID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := []AuditEvent{}
	for rows.Next() {
		var (
			e        AuditEvent
			terminal int
			recorded string
		)
		if err := rows.Scan(&e.Seq, &e.PassID, &e.RecordID, &e.Kind, &terminal, &e.Accession, &e.Payload, &recorded); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Terminal = terminal == 1
		if e.RecordedAt, err = parseTime(recorded); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
