// Package index maintains an optional, disposable sqlite index over a
// playbook's KPTs, rebuilt from the in-memory Playbook after every
// successful Storage.Store. It is never authoritative — the JSON playbook
// file remains the single source of truth — and any error while building
// or querying it degrades to "index unavailable", never to a failure of
// the caller's actual operation.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/playbookhq/engine/internal/models"
)

// Index is a rebuildable, in-memory-only (":memory:") sqlite index over a
// playbook's KPTs, queryable by tag and score for Selector's candidate
// relaxation step on large playbooks.
type Index struct {
	db *sql.DB
}

// Open creates a fresh in-memory index. Callers should Close it when done;
// it holds no on-disk state and carries nothing across process restarts.
func Open(ctx context.Context) (*Index, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening kpt index: %w", err)
	}
	const schema = `
		CREATE TABLE kpt (
			name TEXT PRIMARY KEY,
			score INTEGER NOT NULL,
			pending INTEGER NOT NULL
		);
		CREATE TABLE kpt_tag (
			name TEXT NOT NULL,
			tag TEXT NOT NULL
		);
		CREATE INDEX idx_kpt_tag_tag ON kpt_tag(tag);
		CREATE INDEX idx_kpt_score ON kpt(score);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kpt index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying sqlite connection.
func (idx *Index) Close() error {
	if idx == nil || idx.db == nil {
		return nil
	}
	return idx.db.Close()
}

// Rebuild replaces the index's contents with pb's current KPTs.
func (idx *Index) Rebuild(ctx context.Context, pb *models.Playbook) error {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kpt`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kpt_tag`); err != nil {
		return err
	}

	insertKPT, err := tx.PrepareContext(ctx, `INSERT INTO kpt(name, score, pending) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertKPT.Close()

	insertTag, err := tx.PrepareContext(ctx, `INSERT INTO kpt_tag(name, tag) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer insertTag.Close()

	for _, k := range pb.All() {
		pending := 0
		if k.Pending {
			pending = 1
		}
		if _, err := insertKPT.ExecContext(ctx, k.Name, k.Score, pending); err != nil {
			return err
		}
		for _, t := range k.Tags {
			if _, err := insertTag.ExecContext(ctx, k.Name, t); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// TopStableByScore returns up to limit stable (non-pending) KPT names
// ordered by descending score, for Selector's candidate-filter relaxation
// step (spec §4.4 step 1) on playbooks too large to scan comfortably.
func (idx *Index) TopStableByScore(ctx context.Context, limit int) ([]string, error) {
	rows, err := idx.db.QueryContext(ctx,
		`SELECT name FROM kpt WHERE pending = 0 ORDER BY score DESC, name ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ByAnyTag returns the names of non-pending KPTs carrying at least one of
// the given tags.
func (idx *Index) ByAnyTag(ctx context.Context, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(tags))
	args := make([]any, len(tags))
	for i, t := range tags {
		placeholders[i] = "?"
		args[i] = t
	}
	query := fmt.Sprintf(`
		SELECT DISTINCT kpt.name FROM kpt
		JOIN kpt_tag ON kpt_tag.name = kpt.name
		WHERE kpt.pending = 0 AND kpt_tag.tag IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
