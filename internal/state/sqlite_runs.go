package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// CreateRun records the start of an operation on a tree.
func (s *SQLiteStore) CreateRun(ctx context.Context, treeName, operation string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        generateID(),
		TreeName:  treeName,
		Operation: operation,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("tree", treeName), slog.String("operation", operation))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, tree_name, operation, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.TreeName, run.Operation, string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), errVal, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. An empty treeName
// lists runs for every tree.
func (s *SQLiteStore) ListRuns(ctx context.Context, treeName string, limit int) ([]Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tree_name, operation, status, started_at, completed_at, error
		FROM runs
		WHERE ? = '' OR tree_name = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, treeName, treeName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			status    string
			started   string
			completed sql.NullString
			errMsg    sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.TreeName, &run.Operation, &status, &started, &completed, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Status = RunStatus(status)
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if completed.Valid {
			t, err := parseTime(completed.String)
			if err != nil {
				return nil, err
			}
			run.CompletedAt = &t
		}
		run.Error = errMsg.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}
