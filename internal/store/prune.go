// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"strings"
)

// deleteChunk bounds the number of ids per DELETE ... IN statement,
// well under SQLite's default host-parameter limit.
const deleteChunk = 500

// PrunePublications deletes publications whose activity id is not in
// seen and reports how many rows were removed.
func (s *Store) PrunePublications(ctx context.Context, seen map[int64]struct{}) (int, error) {
	return s.pruneActivities(ctx, "publications", seen)
}

// PruneGrants deletes grants whose activity id is not in seen and
// reports how many rows were removed.
func (s *Store) PruneGrants(ctx context.Context, seen map[int64]struct{}) (int, error) {
	return s.pruneActivities(ctx, "grants", seen)
}

func (s *Store) pruneActivities(ctx context.Context, table string, seen map[int64]struct{}) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT activity_id FROM `+table)
	if err != nil {
		return 0, wrapWriteErr(table, "prune", err)
	}
	defer rows.Close()

	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scanning %s id: %w", table, err)
		}
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("listing %s ids: %w", table, err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapWriteErr(table, "prune", err)
	}
	defer tx.Rollback()

	deleted := 0
	for start := 0; start < len(stale); start += deleteChunk {
		end := start + deleteChunk
		if end > len(stale) {
			end = len(stale)
		}
		chunk := stale[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE activity_id IN (`+placeholders+`)`, args...)
		if err != nil {
			return 0, wrapWriteErr(table, "prune", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapWriteErr(table, "prune", err)
	}
	return deleted, nil
}
