package db

import (
	"context"
	"fmt"

	"github.com/david/grant-advisor/internal/models"
)

func (s *Store) StartRun(ctx context.Context, sourceID string) (string, error) {
	var runID string
	err := s.pool.QueryRow(ctx,
		"INSERT INTO ingest_runs (source_id, status) VALUES ($1, 'running') RETURNING run_id::text",
		sourceID,
	).Scan(&runID)
	if err != nil {
		return "", fmt.Errorf("create ingest run: %w", err)
	}
	return runID, nil
}

func (s *Store) FinishRun(ctx context.Context, runID, status string, found, saved, errs int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE ingest_runs
		SET status = $2, items_found = $3, items_saved = $4, errors = $5, completed_at = NOW()
		WHERE run_id = $1::uuid
	`, runID, status, found, saved, errs)
	if err != nil {
		return fmt.Errorf("update ingest run %s: %w", runID, err)
	}
	return nil
}

// RecentRuns lists the latest ingest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.IngestRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id::text, source_id, status, items_found, items_saved, errors, started_at, completed_at
		FROM ingest_runs ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list ingest runs: %w", err)
	}
	defer rows.Close()

	runs := []models.IngestRun{}
	for rows.Next() {
		var r models.IngestRun
		if err := rows.Scan(&r.RunID, &r.SourceID, &r.Status, &r.ItemsFound, &r.ItemsSaved, &r.Errors, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan ingest run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
