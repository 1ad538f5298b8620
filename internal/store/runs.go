package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cdrip/internal/services"
)

const runColumns = `id, session_id, track, outcome, message, details, sectors_planned, sectors_read,
	warnings, output_path, bytes_written, started_at, finished_at`

// RecordRun stores a finished run together with the protocol lines it
// produced. run.ID is set on success.
func (s *Store) RecordRun(ctx context.Context, run *Run, lines []string) error {
	if run == nil {
		return services.Wrap(services.ErrValidation, "store", "record run", "Run is required", nil)
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	err := s.txWithRetry(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO runs (session_id, track, outcome, message, details, sectors_planned, sectors_read,
			  warnings, output_path, bytes_written, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.SessionID, run.Track, run.Outcome, run.Message, run.Details,
			int64(run.SectorsPlanned), int64(run.SectorsRead), run.Warnings,
			run.OutputPath, run.BytesWritten, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if len(lines) > 0 {
			stmt, err := tx.PrepareContext(ctx, `INSERT INTO protocol_lines (run_id, seq, line) VALUES (?, ?, ?)`)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for i, line := range lines {
				if _, err := stmt.ExecContext(ctx, id, i, line); err != nil {
					return err
				}
			}
		}
		run.ID = id
		return nil
	})
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RunsForSession lists the runs of a session in track order.
func (s *Store) RunsForSession(ctx context.Context, sessionID string) ([]Run, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns a run, or an ErrNotFound error.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	ctx = ensureContext(ctx)
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get run", fmt.Sprintf("Run %d not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ProtocolForRun returns the protocol lines of a run in the order they were
// written.
func (s *Store) ProtocolForRun(ctx context.Context, runID int64) ([]string, error) {
	ctx = ensureContext(ctx)
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT line FROM protocol_lines WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load protocol: %w", err)
	}
	defer rows.Close()

	lines := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan protocol line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanRun(row scanner) (*Run, error) {
	var (
		run               Run
		planned, read     int64
		started, finished string
	)
	if err := row.Scan(&run.ID, &run.SessionID, &run.Track, &run.Outcome, &run.Message, &run.Details,
		&planned, &read, &run.Warnings, &run.OutputPath, &run.BytesWritten, &started, &finished); err != nil {
		return nil, err
	}
	run.SectorsPlanned = uint64(planned)
	run.SectorsRead = uint64(read)
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return &run, nil
}
