package store

import (
	"context"
	"fmt"

	"github.com/roach88/protrecon/internal/protein"
)

// Save upserts a record with its cross-references, parent links and
// participations. A new record is appended to the creation order; an
// existing one keeps its position and creation time.
//
// Participations are upserted by id, so a participation migrated from
// another record changes owner here. Save never deletes participations;
// use DeleteParticipation or DeleteRecord.
func (s *Store) Save(ctx context.Context, r *protein.CuratedRecord) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("save record: id is required")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("save record %s: invalid kind %q", r.ID, r.Kind)
	}
	q := s.records()

	_, err := q.ExecContext(ctx, `
		INSERT INTO records
		(id, seq, kind, short_label, tax_id, sequence, checksum, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			short_label = excluded.short_label,
			tax_id = excluded.tax_id,
			sequence = excluded.sequence,
			checksum = excluded.checksum
	`,
		r.ID,
		string(r.Kind),
		r.ShortLabel,
		r.TaxID,
		r.Sequence,
		r.Checksum,
		formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save record %s: %w", r.ID, err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM xrefs WHERE record_id = ?`, r.ID); err != nil {
		return fmt.Errorf("save record %s: clear xrefs: %w", r.ID, err)
	}
	for i, x := range r.Xrefs() {
		_, err := q.ExecContext(ctx, `
			INSERT INTO xrefs (record_id, position, db, xref_id, qualifier)
			VALUES (?, ?, ?, ?, ?)
		`, r.ID, i, x.Database, x.ID, x.Qualifier)
		if err != nil {
			return fmt.Errorf("save record %s: xref %d: %w", r.ID, i, err)
		}
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM parent_links WHERE record_id = ?`, r.ID); err != nil {
		return fmt.Errorf("save record %s: clear parent links: %w", r.ID, err)
	}
	for _, l := range r.ParentLinks() {
		_, err := q.ExecContext(ctx, `
			INSERT INTO parent_links (record_id, kind, parent_id)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, r.ID, string(l.Kind), l.ParentID)
		if err != nil {
			return fmt.Errorf("save record %s: parent link: %w", r.ID, err)
		}
	}

	for _, p := range r.Participations() {
		if err := s.saveParticipation(ctx, q, r.ID, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveParticipation(ctx context.Context, q querier, recordID string, p protein.Participation) error {
	body, err := marshalParticipation(p)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO participations (id, seq, record_id, interaction_id, body)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM participations), ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			record_id = excluded.record_id,
			interaction_id = excluded.interaction_id,
			body = excluded.body
	`, p.ID, recordID, p.InteractionID, body)
	if err != nil {
		return fmt.Errorf("save participation %s: %w", p.ID, err)
	}
	return nil
}

// DeleteRecord removes a record. Its cross-references, own parent links and
// remaining participations go with it. Deleting a missing record returns
// ErrNotFound.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.records().ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete record %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteParticipation removes one participation. Missing ids are ignored.
func (s *Store) DeleteParticipation(ctx context.Context, id string) error {
	if _, err := s.records().ExecContext(ctx, `DELETE FROM participations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete participation %s: %w", id, err)
	}
	return nil
}
