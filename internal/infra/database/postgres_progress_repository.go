package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"rust_mentor_bot/internal/domain/learner"

	"github.com/jmoiron/sqlx"
)

// Custom errors specific to progress records
var ErrProgressNotFound = fmt.Errorf("progress record not found")
var ErrDuplicateProgress = fmt.Errorf("duplicate progress record (user_id, topic_id)")

// ErrVersionConflict signals that a concurrent writer updated the record
// between our read and write. Callers retry once with a fresh read.
var ErrVersionConflict = fmt.Errorf("progress record version conflict")

type PostgresProgressRepository struct {
	db *sqlx.DB
}

func NewPostgresProgressRepository(db *sqlx.DB) *PostgresProgressRepository {
	return &PostgresProgressRepository{db: db}
}

type progressRow struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	TopicID         int64     `db:"topic_id"`
	Mastery         float64   `db:"mastery"`
	IntervalSeconds int64     `db:"interval_seconds"`
	Streak          int       `db:"streak"`
	Attempts        int       `db:"attempts"`
	LastReviewedAt  time.Time `db:"last_reviewed_at"`
	NextDueAt       time.Time `db:"next_due_at"`
	Archived        bool      `db:"archived"`
	Version         int64     `db:"version"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r progressRow) toDomain() *learner.ProgressRecord {
	return &learner.ProgressRecord{
		ID:             r.ID,
		UserID:         r.UserID,
		TopicID:        r.TopicID,
		Mastery:        r.Mastery,
		Interval:       time.Duration(r.IntervalSeconds) * time.Second,
		Streak:         r.Streak,
		Attempts:       r.Attempts,
		LastReviewedAt: r.LastReviewedAt,
		NextDueAt:      r.NextDueAt,
		Archived:       r.Archived,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

const progressColumns = `id, user_id, topic_id, mastery, interval_seconds, streak, attempts,
	last_reviewed_at, next_due_at, archived, version, created_at, updated_at`

func (r *PostgresProgressRepository) Get(ctx context.Context, userID, topicID int64) (*learner.ProgressRecord, error) {
	var row progressRow
	query := `SELECT ` + progressColumns + ` FROM progress_records WHERE user_id = $1 AND topic_id = $2`
	if err := r.db.GetContext(ctx, &row, query, userID, topicID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("error getting progress record: %w", err)
	}
	return row.toDomain(), nil
}

func (r *PostgresProgressRepository) ListByUser(ctx context.Context, userID int64) ([]*learner.ProgressRecord, error) {
	var rows []progressRow
	query := `SELECT ` + progressColumns + ` FROM progress_records WHERE user_id = $1 ORDER BY topic_id`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("error listing progress records: %w", err)
	}

	records := make([]*learner.ProgressRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toDomain())
	}
	return records, nil
}

func (r *PostgresProgressRepository) Create(ctx context.Context, p *learner.ProgressRecord) error {
	query := `INSERT INTO progress_records (user_id, topic_id, mastery, interval_seconds,
			streak, attempts, last_reviewed_at, next_due_at, archived)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, version, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		p.UserID, p.TopicID, p.Mastery, int64(p.Interval/time.Second),
		p.Streak, p.Attempts, p.LastReviewedAt, p.NextDueAt, p.Archived,
	).Scan(&p.ID, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "progress_records_user_id_topic_id_key") {
			return ErrDuplicateProgress
		}
		return fmt.Errorf("error creating progress record: %w", err)
	}
	return nil
}

// Update writes the record only if the stored version still matches
// p.Version; on success the version is bumped. Zero affected rows is a
// conflict: some other unit of work updated mastery for the same pair in
// between, and overwriting it would silently corrupt the schedule.
func (r *PostgresProgressRepository) Update(ctx context.Context, p *learner.ProgressRecord) error {
	query := `UPDATE progress_records
		SET mastery = $1, interval_seconds = $2, streak = $3, attempts = $4,
			last_reviewed_at = $5, next_due_at = $6, archived = $7,
			version = version + 1, updated_at = NOW()
		WHERE id = $8 AND version = $9
		RETURNING version, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		p.Mastery, int64(p.Interval/time.Second), p.Streak, p.Attempts,
		p.LastReviewedAt, p.NextDueAt, p.Archived, p.ID, p.Version,
	).Scan(&p.Version, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrVersionConflict
		}
		return fmt.Errorf("error updating progress record: %w", err)
	}
	return nil
}

func (r *PostgresProgressRepository) Archive(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE progress_records SET archived = TRUE, version = version + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error archiving progress record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking archive result: %w", err)
	}
	if affected == 0 {
		return ErrProgressNotFound
	}
	return nil
}
