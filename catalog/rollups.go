package catalog

import (
	"context"
	"log/slog"
)

// RecomputeRollups recomputes file_count, matched_count, and total_size on
// every Directory row by aggregating that directory's own files plus every
// descendant directory's files: rollups are recursive, not just
// direct children). The whole operation is idempotent: it always derives
// counters from files/matches rather than incrementing them, so running it
// twice in a row or after a partial scan never drifts the totals.
func (s *Store) RecomputeRollups(ctx context.Context) error {
	slog.DebugContext(ctx, "recompute rollups start")
	defer slog.DebugContext(ctx, "recompute rollups done")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr("catalog.RecomputeRollups", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE directories SET file_count = 0, matched_count = 0, total_size = 0`); err != nil {
		return dbErr("catalog.RecomputeRollups", err)
	}

	// descendants(ancestor_id, id) pairs every directory with itself and
	// every directory nested beneath it, so aggregating files grouped by
	// ancestor_id yields the recursive rollup in one pass.
	const rollupSQL = `
	WITH RECURSIVE descendants(ancestor_id, id) AS (
		SELECT id, id FROM directories
		UNION ALL
		SELECT d.ancestor_id, c.id
		FROM directories c
		JOIN descendants d ON c.parent_id = d.id
	),
	totals AS (
		SELECT
			d.ancestor_id AS directory_id,
			COUNT(f.id) AS file_count,
			COUNT(m.file_id) AS matched_count,
			COALESCE(SUM(f.size), 0) AS total_size
		FROM descendants d
		LEFT JOIN files f ON f.directory_id = d.id
		LEFT JOIN matches m ON m.file_id = f.id
		GROUP BY d.ancestor_id
	)
	UPDATE directories
	SET
		file_count = (SELECT file_count FROM totals WHERE totals.directory_id = directories.id),
		matched_count = (SELECT matched_count FROM totals WHERE totals.directory_id = directories.id),
		total_size = (SELECT total_size FROM totals WHERE totals.directory_id = directories.id)
	WHERE id IN (SELECT directory_id FROM totals)`

	if _, err := tx.ExecContext(ctx, rollupSQL); err != nil {
		return dbErr("catalog.RecomputeRollups", err)
	}
	if err := tx.Commit(); err != nil {
		return dbErr("catalog.RecomputeRollups", err)
	}
	return nil
}
