package store

import (
	"context"
	"fmt"
	"time"
)

// PruneBefore deletes finished sessions that started before cutoff, along
// with their runs and protocol lines. Running sessions are kept.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM sessions WHERE started_at < ? AND status != ?`,
		formatTime(cutoff), string(SessionRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return n, nil
}

// MarkInterrupted closes sessions on device left running by a process that
// died. The caller must hold the drive lock for device.
func (s *Store) MarkInterrupted(ctx context.Context, device string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE sessions SET status = ?, finished_at = ? WHERE status = ? AND device = ?`,
		string(SessionFailed), formatTime(time.Now()), string(SessionRunning), device,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted sessions: %w", err)
	}
	return res.RowsAffected()
}
