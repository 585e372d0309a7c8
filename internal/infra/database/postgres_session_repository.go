package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rust_mentor_bot/internal/domain/learner"

	"github.com/jmoiron/sqlx"
)

// Custom errors
var ErrSessionNotFound = fmt.Errorf("learning session not found")

type PostgresSessionRepository struct {
	db *sqlx.DB
}

func NewPostgresSessionRepository(db *sqlx.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

type sessionRow struct {
	ID         string         `db:"id"`
	UserID     int64          `db:"user_id"`
	TopicID    int64          `db:"topic_id"`
	State      string         `db:"state"`
	Outcome    sql.NullString `db:"outcome"`
	ContentRef string         `db:"content_ref"`
	StartedAt  time.Time      `db:"started_at"`
	EndedAt    sql.NullTime   `db:"ended_at"`
}

func (r sessionRow) toDomain() *learner.LearningSession {
	return &learner.LearningSession{
		ID:         r.ID,
		UserID:     r.UserID,
		TopicID:    r.TopicID,
		State:      learner.SessionState(r.State),
		Outcome:    r.Outcome,
		ContentRef: r.ContentRef,
		StartedAt:  r.StartedAt,
		EndedAt:    r.EndedAt,
	}
}

func (r *PostgresSessionRepository) Create(ctx context.Context, s *learner.LearningSession) error {
	query := `INSERT INTO learning_sessions (id, user_id, topic_id, state, content_ref, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.TopicID, string(s.State), s.ContentRef, s.StartedAt)
	if err != nil {
		return fmt.Errorf("error creating learning session: %w", err)
	}
	return nil
}

func (r *PostgresSessionRepository) GetByID(ctx context.Context, id string) (*learner.LearningSession, error) {
	var row sessionRow
	query := `SELECT id, user_id, topic_id, state, outcome, content_ref, started_at, ended_at
		FROM learning_sessions WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("error getting learning session: %w", err)
	}
	return row.toDomain(), nil
}

func (r *PostgresSessionRepository) UpdateState(ctx context.Context, s *learner.LearningSession) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE learning_sessions SET state = $1, content_ref = $2 WHERE id = $3`,
		string(s.State), s.ContentRef, s.ID)
	if err != nil {
		return fmt.Errorf("error updating learning session state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking session update result: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Close records the terminal transition. The guard on state keeps closed
// sessions immutable: closing an already-terminal session affects zero rows.
func (r *PostgresSessionRepository) Close(ctx context.Context, s *learner.LearningSession) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE learning_sessions SET state = $1, outcome = $2, ended_at = $3
		WHERE id = $4 AND state NOT IN ($5, $6)`,
		string(s.State), s.Outcome, s.EndedAt, s.ID,
		string(learner.SessionCompleted), string(learner.SessionFailed))
	if err != nil {
		return fmt.Errorf("error closing learning session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking session close result: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}
