package database

import (
	"context"
	"fmt"
	"strings"

	"rust_mentor_bot/internal/domain/learner"

	"github.com/jmoiron/sqlx"
)

// Custom errors
var ErrDuplicateAchievement = fmt.Errorf("achievement already awarded")

type PostgresAchievementRepository struct {
	db *sqlx.DB
}

func NewPostgresAchievementRepository(db *sqlx.DB) *PostgresAchievementRepository {
	return &PostgresAchievementRepository{db: db}
}

func (r *PostgresAchievementRepository) Award(ctx context.Context, a *learner.Achievement) error {
	query := `INSERT INTO achievements (user_id, kind, details, awarded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query, a.UserID, string(a.Kind), a.Details, a.AwardedAt).Scan(&a.ID)
	if err != nil {
		if strings.Contains(err.Error(), "achievements_user_id_kind_key") {
			return ErrDuplicateAchievement
		}
		return fmt.Errorf("error awarding achievement: %w", err)
	}
	return nil
}

func (r *PostgresAchievementRepository) ListByUser(ctx context.Context, userID int64) ([]*learner.Achievement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, kind, details, awarded_at FROM achievements WHERE user_id = $1 ORDER BY awarded_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing achievements: %w", err)
	}
	defer rows.Close()

	achievements := make([]*learner.Achievement, 0)
	for rows.Next() {
		a := &learner.Achievement{}
		var kind string
		if err := rows.Scan(&a.ID, &a.UserID, &kind, &a.Details, &a.AwardedAt); err != nil {
			return nil, fmt.Errorf("error scanning achievement: %w", err)
		}
		a.Kind = learner.AchievementKind(kind)
		achievements = append(achievements, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievements: %w", err)
	}
	return achievements, nil
}
