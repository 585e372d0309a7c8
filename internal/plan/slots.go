package plan

import (
	"time"

	"rust_mentor_bot/internal/domain/learner"
)

// Slots computes the user's reminder times for the calendar day containing
// day. Frequency F slots are spread evenly across the active window
// [start,end): slot i fires at start + i*(window/F). With F=2 and window
// [08:00,21:00) that gives 08:00 and 14:30.
func Slots(u *learner.User, day time.Time) []time.Time {
	freq := u.Frequency
	if freq < learner.MinFrequency {
		freq = learner.MinFrequency
	}
	if freq > learner.MaxFrequency {
		freq = learner.MaxFrequency
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	width := u.WindowEndMinute - u.WindowStartMinute
	if width <= 0 {
		return nil
	}

	slots := make([]time.Time, 0, freq)
	step := width / freq
	for i := 0; i < freq; i++ {
		minute := u.WindowStartMinute + i*step
		slots = append(slots, midnight.Add(time.Duration(minute)*time.Minute))
	}
	return slots
}

// Defer maps a requested notification time into the user's active window:
// a request inside the window fires as-is, one before the window waits for
// the window start, and one after it waits for tomorrow's window start.
// Requests are deferred, never dropped.
func Defer(u *learner.User, requested time.Time) time.Time {
	midnight := time.Date(requested.Year(), requested.Month(), requested.Day(), 0, 0, 0, 0, requested.Location())
	start := midnight.Add(time.Duration(u.WindowStartMinute) * time.Minute)
	end := midnight.Add(time.Duration(u.WindowEndMinute) * time.Minute)

	switch {
	case requested.Before(start):
		return start
	case requested.Before(end):
		return requested
	default:
		return start.AddDate(0, 0, 1)
	}
}

// LastElapsedSlot returns the most recent slot at or before now for the
// user's current preferences, and false when no slot has elapsed today.
func LastElapsedSlot(u *learner.User, now time.Time) (time.Time, bool) {
	var (
		last  time.Time
		found bool
	)
	for _, slot := range Slots(u, now) {
		if slot.After(now) {
			break
		}
		last = slot
		found = true
	}
	return last, found
}
