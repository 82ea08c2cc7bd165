package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/shared"
)

// SessionEventRepository persists an audit trail of session transitions.
type SessionEventRepository struct {
	db *sql.DB
}

// NewSessionEventRepository creates a new [SessionEventRepository] with the given database connection
func NewSessionEventRepository(db *sql.DB) *SessionEventRepository {
	return &SessionEventRepository{db: db}
}

// Record inserts a transition derived from s
func (r *SessionEventRepository) Record(ctx context.Context, s models.Session) (*models.SessionEvent, error) {
	event := &models.SessionEvent{
		ID:        shared.GenerateID(),
		State:     s.State(),
		Reason:    s.Reason,
		CreatedAt: s.ChangedAt,
	}
	if s.User != nil {
		event.UserEmail = s.User.Email
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO session_events (id, state, reason, user_email, created_at) VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, event.ID, string(event.State), string(event.Reason), event.UserEmail, event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session event: %w", err)
	}
	return event, nil
}

// Recent returns at most limit events, newest first
func (r *SessionEventRepository) Recent(ctx context.Context, limit int) ([]*models.SessionEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, state, reason, user_email, created_at
		FROM session_events
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	var events []*models.SessionEvent
	for rows.Next() {
		var (
			e             models.SessionEvent
			state, reason string
		)
		if err := rows.Scan(&e.ID, &state, &reason, &e.UserEmail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}
		e.State = models.State(state)
		e.Reason = models.Reason(reason)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

// Prune deletes events older than cutoff and reports how many were removed
func (r *SessionEventRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM session_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune session events: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}
