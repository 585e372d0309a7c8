package learner

import (
	"time"
)

// ProgressRecord tracks one user's mastery of one topic. One record per
// (user, topic) pair; created on first exposure, updated after every
// exercise attempt, archived instead of deleted.
//
// Invariant: NextDueAt >= LastReviewedAt.
type ProgressRecord struct {
	ID      int64
	UserID  int64
	TopicID int64

	// Mastery is a bounded proficiency estimate in [0,1].
	Mastery float64

	// Interval is the current spaced-repetition interval. Zero before the
	// first scored attempt.
	Interval time.Duration

	// Streak counts consecutive successful attempts; reset on failure.
	Streak   int
	Attempts int

	LastReviewedAt time.Time
	NextDueAt      time.Time

	Archived bool

	// Version supports compare-and-swap updates in the store; concurrent
	// writers for the same record lose with a conflict instead of silently
	// overwriting each other.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Due reports whether the record is due for review at the given time and
// still below the retained-mastery threshold.
func (p *ProgressRecord) Due(now time.Time, retainedThreshold float64) bool {
	if p.Archived {
		return false
	}
	return !p.NextDueAt.After(now) && p.Mastery < retainedThreshold
}
