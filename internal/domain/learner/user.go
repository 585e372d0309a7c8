package learner

import (
	"database/sql"
	"fmt"
	"time"
)

// Bounds for notification preferences.
const (
	MinFrequency = 1
	MaxFrequency = 3

	minutesPerDay = 24 * 60
)

// ErrInvalidPreferences signals malformed preference input. The request is
// rejected and the stored preferences are left unchanged.
var ErrInvalidPreferences = fmt.Errorf("learner: invalid notification preferences")

// User represents a learner interacting with the bot. Created on first
// contact (/start or any session trigger).
type User struct {
	ID         int64
	TelegramID int64
	FirstName  string
	Username   sql.NullString

	// Notification preferences: Frequency reminders per day, evenly spread
	// inside the [WindowStartMinute, WindowEndMinute) active window
	// (minutes from midnight, user-local day).
	Frequency            int
	WindowStartMinute    int
	WindowEndMinute      int
	NotificationsEnabled bool

	// Streak bookkeeping: consecutive calendar days with at least one
	// completed session. LastActiveDay is normalized to midnight.
	StreakCount   int
	LastActiveDay sql.NullTime

	// LastNotifiedAt prevents double-sending for the same reminder slot.
	LastNotifiedAt sql.NullTime

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidatePreferences checks a proposed preference update.
func ValidatePreferences(frequency, windowStartMinute, windowEndMinute int) error {
	if frequency < MinFrequency || frequency > MaxFrequency {
		return fmt.Errorf("%w: frequency %d out of range [%d,%d]", ErrInvalidPreferences, frequency, MinFrequency, MaxFrequency)
	}
	if windowStartMinute < 0 || windowStartMinute >= minutesPerDay {
		return fmt.Errorf("%w: window start minute %d", ErrInvalidPreferences, windowStartMinute)
	}
	if windowEndMinute <= windowStartMinute || windowEndMinute > minutesPerDay {
		return fmt.Errorf("%w: window [%d,%d) is empty or out of range", ErrInvalidPreferences, windowStartMinute, windowEndMinute)
	}
	return nil
}

// TouchStreak updates the user's streak for a session completed at the
// given time: same day is a no-op, the next day extends the streak, a gap
// resets it to 1.
func (u *User) TouchStreak(completedAt time.Time) {
	day := time.Date(completedAt.Year(), completedAt.Month(), completedAt.Day(), 0, 0, 0, 0, completedAt.Location())

	if !u.LastActiveDay.Valid {
		u.StreakCount = 1
		u.LastActiveDay = sql.NullTime{Time: day, Valid: true}
		return
	}

	prev := u.LastActiveDay.Time
	switch {
	case day.Equal(prev):
		// Already counted today.
	case day.Equal(prev.AddDate(0, 0, 1)):
		u.StreakCount++
		u.LastActiveDay = sql.NullTime{Time: day, Valid: true}
	default:
		u.StreakCount = 1
		u.LastActiveDay = sql.NullTime{Time: day, Valid: true}
	}
}
