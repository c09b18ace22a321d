package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/naming"
	"github.com/roach88/regen/internal/regen"
)

// SaveDocument writes d, replacing any previous version with the same ID.
// Identity-map snapshots and the run log of the document are kept.
//
// The write is a single transaction: readers see either the old or the
// new document, never a mix.
func (s *Store) SaveDocument(ctx context.Context, d *document.Document) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("save document: document id is required")
	}
	ops := d.Operations()

	historyHash, err := ir.HistoryHash(ops)
	if err != nil {
		return fmt.Errorf("save document %s: %w", d.ID, err)
	}
	bodies, err := marshalBodies(d.BaseBodies())
	if err != nil {
		return fmt.Errorf("save document %s: %w", d.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save document %s: begin tx: %w", d.ID, err)
	}
	defer tx.Rollback() // No-op if committed

	// Upsert rather than REPLACE: REPLACE would delete the row and cascade
	// into identity_maps and regen_runs.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, applied_count, base_bodies, history_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			applied_count = excluded.applied_count,
			base_bodies   = excluded.base_bodies,
			history_hash  = excluded.history_hash
	`, d.ID, d.AppliedCount(), bodies, historyHash)
	if err != nil {
		return fmt.Errorf("save document %s: %w", d.ID, err)
	}

	for _, table := range []string{"suppressions", "operations", "sketches"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE doc_id = ?", d.ID); err != nil {
			return fmt.Errorf("save document %s: clear %s: %w", d.ID, table, err)
		}
	}

	for pos, op := range ops {
		record, err := marshalRecord(op)
		if err != nil {
			return fmt.Errorf("save document %s: %w", d.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO operations (doc_id, position, op_id, record)
			VALUES (?, ?, ?, ?)
		`, d.ID, pos, op.ID, record)
		if err != nil {
			return fmt.Errorf("save document %s: operation %s: %w", d.ID, op.ID, err)
		}
	}

	for _, opID := range d.Suppressed() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO suppressions (doc_id, op_id) VALUES (?, ?)
		`, d.ID, opID)
		if err != nil {
			return fmt.Errorf("save document %s: suppression %s: %w", d.ID, opID, err)
		}
	}

	for _, id := range d.SketchIDs() {
		sk, _ := d.Sketch(id)
		body, err := marshalSketch(sk)
		if err != nil {
			return fmt.Errorf("save document %s: sketch %s: %w", d.ID, id, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sketches (doc_id, sketch_id, body) VALUES (?, ?, ?)
		`, d.ID, id, body)
		if err != nil {
			return fmt.Errorf("save document %s: sketch %s: %w", d.ID, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save document %s: commit: %w", d.ID, err)
	}
	return nil
}

// SaveIdentityMap appends a snapshot of m for docID.
// Returns the snapshot's seq and whether a new row was written: a map
// whose text equals the latest snapshot is not stored again.
//
// The document must already be saved (foreign key constraint).
func (s *Store) SaveIdentityMap(ctx context.Context, docID string, m *naming.Map) (seq int64, inserted bool, err error) {
	text := m.String()
	hash := ir.IdentityMapHash(text)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("save identity map: begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		lastSeq  int64
		lastHash string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT seq, content_hash FROM identity_maps
		WHERE doc_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, docID).Scan(&lastSeq, &lastHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, false, fmt.Errorf("save identity map: %w", err)
	case lastHash == hash:
		return lastSeq, false, nil
	}

	seq = lastSeq + 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO identity_maps (doc_id, seq, content_hash, body)
		VALUES (?, ?, ?, ?)
	`, docID, seq, hash, text)
	if err != nil {
		return 0, false, fmt.Errorf("save identity map: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("save identity map: commit: %w", err)
	}
	return seq, true, nil
}

// RecordRun appends a regeneration outcome to the run log of docID and
// returns its seq. Recording the same run ID twice is a no-op that returns
// the existing seq.
func (s *Store) RecordRun(ctx context.Context, docID string, res regen.Result) (int64, error) {
	failed, err := marshalFailures(res.Failed)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, `
		SELECT seq FROM regen_runs WHERE run_id = ?
	`, res.RunID).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("record run: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM regen_runs WHERE doc_id = ?
	`, docID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO regen_runs (doc_id, seq, run_id, status, applied, failed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, docID, seq, res.RunID, res.Status.String(), res.Applied, failed)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("record run: commit: %w", err)
	}
	return seq, nil
}
