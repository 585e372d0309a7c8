package learner

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	// UpdatePreferences persists Frequency, window and NotificationsEnabled.
	UpdatePreferences(ctx context.Context, u *User) error
	// UpdateStreak persists StreakCount and LastActiveDay.
	UpdateStreak(ctx context.Context, u *User) error
	// MarkNotified records when the last reminder was sent to the user.
	MarkNotified(ctx context.Context, userID int64, at time.Time) error
	// ListNotifiable returns users with notifications enabled.
	ListNotifiable(ctx context.Context) ([]*User, error)
}

// ProgressRepository defines persistence operations for ProgressRecord
// entities. Update uses optimistic concurrency on Version: a write against
// a stale version fails with a conflict so the caller can re-read and retry.
type ProgressRepository interface {
	Get(ctx context.Context, userID, topicID int64) (*ProgressRecord, error)
	ListByUser(ctx context.Context, userID int64) ([]*ProgressRecord, error)
	Create(ctx context.Context, p *ProgressRecord) error
	Update(ctx context.Context, p *ProgressRecord) error
	Archive(ctx context.Context, id int64) error
}

// SessionRepository defines persistence operations for LearningSession
// entities.
type SessionRepository interface {
	Create(ctx context.Context, s *LearningSession) error
	GetByID(ctx context.Context, id string) (*LearningSession, error)
	// UpdateState persists a non-terminal state transition.
	UpdateState(ctx context.Context, s *LearningSession) error
	// Close persists the terminal state, outcome and end time.
	Close(ctx context.Context, s *LearningSession) error
}

// AchievementRepository defines persistence operations for Achievements.
type AchievementRepository interface {
	// Award persists an achievement. Awarding a kind the user already holds
	// is a duplicate error; callers treat that as "already earned".
	Award(ctx context.Context, a *Achievement) error
	ListByUser(ctx context.Context, userID int64) ([]*Achievement, error)
}
