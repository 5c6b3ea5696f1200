package storage

import (
	"fmt"
	"time"
)

// Run is one recorded filtering run.
type Run struct {
	ID                  string
	StartedAt           time.Time
	FinishedAt          time.Time
	TotalItems          int
	ItemsRetained       int
	TotalBatches        int
	SuccessfulBatches   int
	ConfidenceThreshold float64
	OutputPath          string
}

// RunStore persists run history.
type RunStore struct {
	db *DB
}

// NewRunStore creates a run store on an open database.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Record inserts one finished run.
func (s *RunStore) Record(run Run) error {
	_, err := s.db.conn.Exec(`
		INSERT INTO runs (
			id, started_at, finished_at, total_items, items_retained,
			total_batches, successful_batches, confidence_threshold, output_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.TotalItems,
		run.ItemsRetained,
		run.TotalBatches,
		run.SuccessfulBatches,
		run.ConfidenceThreshold,
		run.OutputPath,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRecent returns the most recent runs, newest first.
func (s *RunStore) ListRecent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.conn.Query(`
		SELECT id, started_at, finished_at, total_items, items_retained,
		       total_batches, successful_batches, confidence_threshold, output_path
		FROM runs
		ORDER BY finished_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished string
		if err := rows.Scan(
			&run.ID, &started, &finished, &run.TotalItems, &run.ItemsRetained,
			&run.TotalBatches, &run.SuccessfulBatches, &run.ConfidenceThreshold, &run.OutputPath,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
