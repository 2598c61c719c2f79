package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/protrecon/internal/protein"
)

// AllIDs returns every record id in creation order.
//
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) AllIDs(ctx context.Context) ([]string, error) {
	rows, err := s.records().QueryContext(ctx, `
		SELECT id FROM records
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query record ids: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows, "record ids")
}

// Get loads one record. Returns ErrNotFound when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*protein.CuratedRecord, error) {
	return loadRecord(ctx, s.records(), id)
}

// LoadBatch loads the records with the given ids, in the order given. Ids
// that no longer exist (deleted earlier in the pass) are skipped.
func (s *Store) LoadBatch(ctx context.Context, ids []string) ([]*protein.CuratedRecord, error) {
	q := s.records()
	out := make([]*protein.CuratedRecord, 0, len(ids))
	for _, id := range ids {
		r, err := loadRecord(ctx, q, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// FindByXref returns the ids of records carrying the given cross-reference,
// in creation order.
func (s *Store) FindByXref(ctx context.Context, x protein.Xref) ([]string, error) {
	rows, err := s.records().QueryContext(ctx, `
		SELECT DISTINCT r.id
		FROM xrefs x
		JOIN records r ON r.id = x.record_id
		WHERE x.db = ? AND x.xref_id = ? AND x.qualifier = ?
		ORDER BY r.seq ASC
	`, x.Database, x.ID, x.Qualifier)
	if err != nil {
		return nil, fmt.Errorf("query xref %s:%s: %w", x.Database, x.ID, err)
	}
	defer rows.Close()
	return scanStrings(rows, "xref matches")
}

func loadRecord(ctx context.Context, q querier, id string) (*protein.CuratedRecord, error) {
	var (
		kind      string
		createdAt string
	)
	r := &protein.CuratedRecord{}
	err := q.QueryRowContext(ctx, `
		SELECT id, kind, short_label, tax_id, sequence, checksum, created_at
		FROM records WHERE id = ?
	`, id).Scan(&r.ID, &kind, &r.ShortLabel, &r.TaxID, &r.Sequence, &r.Checksum, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query record %s: %w", id, err)
	}
	r.Kind = protein.RecordKind(kind)
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("record %s: %w", id, err)
	}

	if err := loadXrefs(ctx, q, r); err != nil {
		return nil, err
	}
	if err := loadParentLinks(ctx, q, r); err != nil {
		return nil, err
	}
	if err := loadTranscriptIDs(ctx, q, r); err != nil {
		return nil, err
	}
	if err := loadParticipations(ctx, q, r); err != nil {
		return nil, err
	}
	return r, nil
}

func loadXrefs(ctx context.Context, q querier, r *protein.CuratedRecord) error {
	rows, err := q.QueryContext(ctx, `
		SELECT db, xref_id, qualifier FROM xrefs
		WHERE record_id = ?
		ORDER BY position ASC
	`, r.ID)
	if err != nil {
		return fmt.Errorf("query xrefs of %s: %w", r.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var x protein.Xref
		if err := rows.Scan(&x.Database, &x.ID, &x.Qualifier); err != nil {
			return fmt.Errorf("scan xref of %s: %w", r.ID, err)
		}
		if _, err := r.AddXref(x); err != nil {
			return fmt.Errorf("load xrefs: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate xrefs of %s: %w", r.ID, err)
	}
	return nil
}

func loadParentLinks(ctx context.Context, q querier, r *protein.CuratedRecord) error {
	rows, err := q.QueryContext(ctx, `
		SELECT kind, parent_id FROM parent_links
		WHERE record_id = ?
		ORDER BY kind ASC, parent_id COLLATE BINARY ASC
	`, r.ID)
	if err != nil {
		return fmt.Errorf("query parent links of %s: %w", r.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, parent string
		if err := rows.Scan(&kind, &parent); err != nil {
			return fmt.Errorf("scan parent link of %s: %w", r.ID, err)
		}
		if err := r.AddParentLink(protein.ParentLink{Kind: protein.ParentKind(kind), ParentID: parent}); err != nil {
			return fmt.Errorf("load parent links: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate parent links of %s: %w", r.ID, err)
	}
	return nil
}

func loadTranscriptIDs(ctx context.Context, q querier, r *protein.CuratedRecord) error {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT record_id FROM parent_links
		WHERE parent_id = ?
		ORDER BY record_id COLLATE BINARY ASC
	`, r.ID)
	if err != nil {
		return fmt.Errorf("query transcripts of %s: %w", r.ID, err)
	}
	defer rows.Close()

	ids, err := scanStrings(rows, "transcripts")
	if err != nil {
		return err
	}
	for _, id := range ids {
		r.AddTranscriptID(id)
	}
	return nil
}

// loadParticipations computes each participation's interaction size as the
// number of stored participations sharing its interaction.
func loadParticipations(ctx context.Context, q querier, r *protein.CuratedRecord) error {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.interaction_id, p.body,
			CASE WHEN p.interaction_id = '' THEN 1
			ELSE (SELECT COUNT(*) FROM participations o WHERE o.interaction_id = p.interaction_id)
			END
		FROM participations p
		WHERE p.record_id = ?
		ORDER BY p.seq ASC, p.id COLLATE BINARY ASC
	`, r.ID)
	if err != nil {
		return fmt.Errorf("query participations of %s: %w", r.ID, err)
	}
	defer rows.Close()

	var loaded []protein.Participation
	for rows.Next() {
		var id, interaction, body string
		var size int
		if err := rows.Scan(&id, &interaction, &body, &size); err != nil {
			return fmt.Errorf("scan participation of %s: %w", r.ID, err)
		}
		p, err := unmarshalParticipation(id, r.ID, interaction, size, body)
		if err != nil {
			return err
		}
		loaded = append(loaded, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate participations of %s: %w", r.ID, err)
	}
	for _, p := range loaded {
		if err := r.AddParticipation(p); err != nil {
			return fmt.Errorf("load participations: %w", err)
		}
	}
	return nil
}

func scanStrings(rows *sql.Rows, what string) ([]string, error) {
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return out, nil
}
