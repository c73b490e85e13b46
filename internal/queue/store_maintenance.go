package queue

import (
	"context"
	"fmt"
	"time"
)

// Stats counts available and claimed items.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	row := s.db.QueryRowContext(
		ctx,
		`SELECT
             COALESCE(SUM(CASE WHEN claimed_at IS NULL THEN 1 ELSE 0 END), 0),
             COALESCE(SUM(CASE WHEN claimed_at IS NULL THEN 0 ELSE 1 END), 0)
         FROM export_items`,
	)
	if err := row.Scan(&stats.Pending, &stats.Claimed); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}

// ReclaimStale releases items whose lease started before cutoff. Such items
// belong to workers that stopped between claim and delete.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE export_items SET claimed_at = NULL, claim_token = NULL
         WHERE claimed_at IS NOT NULL AND claimed_at < ?`,
		cutoff.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every item, claimed or not.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM export_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByDirectory removes available items of directory in one statement,
// the oldest only unless all is set. Claimed items are left to their worker.
func (s *Store) DeleteByDirectory(ctx context.Context, directory string, all bool) (int, error) {
	query := `DELETE FROM export_items
         WHERE id = (SELECT MIN(id) FROM export_items WHERE directory = ? AND claimed_at IS NULL)`
	if all {
		query = `DELETE FROM export_items WHERE directory = ? AND claimed_at IS NULL`
	}
	res, err := s.execWithRetry(ctx, query, directory)
	if err != nil {
		return 0, fmt.Errorf("delete items by directory: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
