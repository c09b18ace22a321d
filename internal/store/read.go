package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/naming"
	"github.com/roach88/regen/internal/regen"
)

// Run is one entry of the regeneration log.
type Run struct {
	Seq     int64
	RunID   string
	Status  regen.Status
	Applied int
	Failed  []regen.Failure
}

// Snapshot is a stored identity map.
type Snapshot struct {
	Seq         int64
	ContentHash string
	Map         *naming.Map
}

// LoadDocument reads the document with the given ID.
// Returns an error wrapping sql.ErrNoRows if it does not exist.
func (s *Store) LoadDocument(ctx context.Context, id string) (*document.Document, error) {
	var (
		applied int
		bodies  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT applied_count, base_bodies FROM documents WHERE id = ?
	`, id).Scan(&applied, &bodies)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}

	d := document.New(id)
	base, err := unmarshalBodies(bodies)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	for _, b := range base {
		if err := d.AddBaseBody(b); err != nil {
			return nil, fmt.Errorf("load document %s: %w", id, err)
		}
	}

	if err := s.loadSketches(ctx, d); err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	if err := s.loadOperations(ctx, d); err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	if err := s.loadSuppressions(ctx, d); err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	if err := d.SetAppliedCount(applied); err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return d, nil
}

func (s *Store) loadSketches(ctx context.Context, d *document.Document) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sketch_id, body FROM sketches
		WHERE doc_id = ?
		ORDER BY sketch_id COLLATE BINARY ASC
	`, d.ID)
	if err != nil {
		return fmt.Errorf("query sketches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return fmt.Errorf("scan sketch: %w", err)
		}
		sk, err := unmarshalSketch(body)
		if err != nil {
			return fmt.Errorf("sketch %s: %w", id, err)
		}
		if err := d.AddSketch(id, sk); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate sketches: %w", err)
	}
	return nil
}

func (s *Store) loadOperations(ctx context.Context, d *document.Document) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op_id, record FROM operations
		WHERE doc_id = ?
		ORDER BY position ASC
	`, d.ID)
	if err != nil {
		return fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var opID, record string
		if err := rows.Scan(&opID, &record); err != nil {
			return fmt.Errorf("scan operation: %w", err)
		}
		rec, err := unmarshalRecord(record)
		if err != nil {
			return fmt.Errorf("operation %s: %w", opID, err)
		}
		if err := d.Append(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate operations: %w", err)
	}
	return nil
}

func (s *Store) loadSuppressions(ctx context.Context, d *document.Document) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op_id FROM suppressions
		WHERE doc_id = ?
		ORDER BY op_id COLLATE BINARY ASC
	`, d.ID)
	if err != nil {
		return fmt.Errorf("query suppressions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var opID string
		if err := rows.Scan(&opID); err != nil {
			return fmt.Errorf("scan suppression: %w", err)
		}
		if err := d.Suppress(opID, true); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate suppressions: %w", err)
	}
	return nil
}

// ListDocuments returns the IDs of every stored document, sorted.
func (s *Store) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM documents ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return ids, nil
}

// LatestIdentityMap returns the most recent identity-map snapshot of
// docID. Returns an error wrapping sql.ErrNoRows if none was saved.
func (s *Store) LatestIdentityMap(ctx context.Context, docID string) (Snapshot, error) {
	var (
		snap Snapshot
		body string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, content_hash, body FROM identity_maps
		WHERE doc_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, docID).Scan(&snap.Seq, &snap.ContentHash, &body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest identity map %s: %w", docID, err)
	}

	m, err := naming.ParseMap(body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest identity map %s: %w", docID, err)
	}
	snap.Map = m
	return snap, nil
}

// ListRuns returns the regeneration log of docID in seq order.
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ListRuns(ctx context.Context, docID string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, run_id, status, applied, failed FROM regen_runs
		WHERE doc_id = ?
		ORDER BY seq ASC
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r              Run
			status, failed string
		)
		if err := rows.Scan(&r.Seq, &r.RunID, &status, &r.Applied, &failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.Status, err = regen.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("run %s: %w", r.RunID, err)
		}
		if r.Failed, err = unmarshalFailures(failed); err != nil {
			return nil, fmt.Errorf("run %s: %w", r.RunID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
