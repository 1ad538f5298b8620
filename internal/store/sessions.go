package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cdrip/internal/services"
)

const sessionColumns = "id, device, disc_id, track_count, whole_disc, status, started_at, finished_at"

// CreateSession inserts a running session.
func (s *Store) CreateSession(ctx context.Context, session Session) (*Session, error) {
	if strings.TrimSpace(session.ID) == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create session", "Session id is required", nil)
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	session.Status = SessionRunning
	session.FinishedAt = time.Time{}

	_, err := s.execWithRetry(ctx,
		`INSERT INTO sessions (id, device, disc_id, track_count, whole_disc, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Device, session.DiscID, session.TrackCount, boolToInt(session.WholeDisc),
		string(session.Status), formatTime(session.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &session, nil
}

// FinishSession records the final status of a session.
func (s *Store) FinishSession(ctx context.Context, id string, status SessionStatus, finishedAt time.Time) error {
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE sessions SET status = ?, finished_at = ? WHERE id = ?`,
		string(status), formatTime(finishedAt), id,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "finish session", fmt.Sprintf("Session %s not found", id), nil)
	}
	return nil
}

// GetSession returns a session, or an ErrNotFound error.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get session", fmt.Sprintf("Session %s not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListSessions returns the most recent sessions first. limit <= 0 returns all.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		session   Session
		wholeDisc int
		status    string
		started   string
		finished  sql.NullString
	)
	if err := row.Scan(&session.ID, &session.Device, &session.DiscID, &session.TrackCount, &wholeDisc, &status, &started, &finished); err != nil {
		return nil, err
	}
	session.WholeDisc = wholeDisc != 0
	session.Status = SessionStatus(status)
	session.StartedAt = parseTime(started)
	if finished.Valid {
		session.FinishedAt = parseTime(finished.String)
	}
	return &session, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
