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

// Custom errors
var ErrUserNotFound = fmt.Errorf("user not found")
var ErrDuplicateTelegramID = fmt.Errorf("user with this Telegram ID already exists")

type PostgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

type userRow struct {
	ID                   int64          `db:"id"`
	TelegramID           int64          `db:"telegram_id"`
	FirstName            string         `db:"first_name"`
	Username             sql.NullString `db:"username"`
	Frequency            int            `db:"frequency"`
	WindowStartMinute    int            `db:"window_start_minute"`
	WindowEndMinute      int            `db:"window_end_minute"`
	NotificationsEnabled bool           `db:"notifications_enabled"`
	StreakCount          int            `db:"streak_count"`
	LastActiveDay        sql.NullTime   `db:"last_active_day"`
	LastNotifiedAt       sql.NullTime   `db:"last_notified_at"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func (r userRow) toDomain() *learner.User {
	return &learner.User{
		ID:                   r.ID,
		TelegramID:           r.TelegramID,
		FirstName:            r.FirstName,
		Username:             r.Username,
		Frequency:            r.Frequency,
		WindowStartMinute:    r.WindowStartMinute,
		WindowEndMinute:      r.WindowEndMinute,
		NotificationsEnabled: r.NotificationsEnabled,
		StreakCount:          r.StreakCount,
		LastActiveDay:        r.LastActiveDay,
		LastNotifiedAt:       r.LastNotifiedAt,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

const userColumns = `id, telegram_id, first_name, username, frequency, window_start_minute,
	window_end_minute, notifications_enabled, streak_count, last_active_day,
	last_notified_at, created_at, updated_at`

func (r *PostgresUserRepository) Create(ctx context.Context, u *learner.User) error {
	query := `INSERT INTO users (telegram_id, first_name, username, frequency,
			window_start_minute, window_end_minute, notifications_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		u.TelegramID, u.FirstName, u.Username, u.Frequency,
		u.WindowStartMinute, u.WindowEndMinute, u.NotificationsEnabled,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "users_telegram_id_key") {
			return ErrDuplicateTelegramID
		}
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*learner.User, error) {
	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by ID: %w", err)
	}
	return row.toDomain(), nil
}

func (r *PostgresUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*learner.User, error) {
	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	if err := r.db.GetContext(ctx, &row, query, telegramID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by Telegram ID: %w", err)
	}
	return row.toDomain(), nil
}

func (r *PostgresUserRepository) UpdatePreferences(ctx context.Context, u *learner.User) error {
	query := `UPDATE users
		SET frequency = $1, window_start_minute = $2, window_end_minute = $3,
			notifications_enabled = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		u.Frequency, u.WindowStartMinute, u.WindowEndMinute, u.NotificationsEnabled, u.ID,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrUserNotFound
		}
		return fmt.Errorf("error updating user preferences: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) UpdateStreak(ctx context.Context, u *learner.User) error {
	query := `UPDATE users
		SET streak_count = $1, last_active_day = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query, u.StreakCount, u.LastActiveDay, u.ID).Scan(&u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrUserNotFound
		}
		return fmt.Errorf("error updating user streak: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) MarkNotified(ctx context.Context, userID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_notified_at = $1, updated_at = NOW() WHERE id = $2`, at, userID)
	if err != nil {
		return fmt.Errorf("error marking user notified: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking mark-notified result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) ListNotifiable(ctx context.Context) ([]*learner.User, error) {
	var rows []userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE notifications_enabled = TRUE ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("error listing notifiable users: %w", err)
	}

	users := make([]*learner.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	return users, nil
}
