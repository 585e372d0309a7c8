package learner

import "time"

// AchievementKind identifies a one-time award. A user earns each kind at
// most once.
type AchievementKind string

const (
	AchievementFirstLesson    AchievementKind = "FIRST_LESSON"
	AchievementStreak3Days    AchievementKind = "STREAK_3_DAYS"
	AchievementStreak7Days    AchievementKind = "STREAK_7_DAYS"
	AchievementStreak30Days   AchievementKind = "STREAK_30_DAYS"
	AchievementTopicMastery   AchievementKind = "TOPIC_MASTERY"
	AchievementPracticeMaster AchievementKind = "PRACTICE_MASTER"
	AchievementCodeWarrior    AchievementKind = "CODE_WARRIOR"
)

// Achievement is a persisted award.
type Achievement struct {
	ID        int64
	UserID    int64
	Kind      AchievementKind
	Details   string // short human-readable context, e.g. the mastered topic
	AwardedAt time.Time
}
