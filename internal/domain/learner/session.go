package learner

import (
	"database/sql"
	"fmt"
	"time"
)

// SessionState tracks a learning session through its lifecycle:
// Requested -> ContentFetched -> Presented -> Completed, or
// Requested -> Failed when content fetching exhausts its retry budget.
type SessionState string

const (
	SessionRequested      SessionState = "REQUESTED"
	SessionContentFetched SessionState = "CONTENT_FETCHED"
	SessionPresented      SessionState = "PRESENTED"
	SessionCompleted      SessionState = "COMPLETED"
	SessionFailed         SessionState = "FAILED"
)

// Terminal reports whether the state is final. Outcome reports against a
// terminal session are ignored, not double-counted.
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// Outcome is the user-reported result of an exercise.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	OutcomePartial Outcome = "PARTIAL"
)

// IsValid reports whether o is a declared outcome value.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomePartial:
		return true
	}
	return false
}

// ErrInvalidOutcome signals an outcome value outside the declared enum.
var ErrInvalidOutcome = fmt.Errorf("learner: invalid exercise outcome")

// LearningSession records one interaction. Immutable after it reaches a
// terminal state.
type LearningSession struct {
	ID      string // UUID
	UserID  int64
	TopicID int64
	State   SessionState

	// Outcome is set only when State is Completed.
	Outcome sql.NullString

	// ContentRef names the lesson that was presented (topic slug for
	// catalog lessons, "mini-lesson" or "fallback" otherwise).
	ContentRef string

	StartedAt time.Time
	EndedAt   sql.NullTime
}
