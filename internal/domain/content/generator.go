package content

import (
	"context"
	"fmt"

	"rust_mentor_bot/internal/domain/catalog"
)

// ErrGeneration signals a transient content-generation failure (upstream
// error or timeout). Callers may retry up to their budget; other errors
// from a Generator are not retryable.
var ErrGeneration = fmt.Errorf("content: generation failed")

// Lesson is a generated unit of content presented to the user.
type Lesson struct {
	Title    string
	Body     string
	Exercise string
}

// Profile summarizes a user's standing so generated content can be adapted
// to their level.
type Profile struct {
	Level        catalog.Difficulty
	StrongTopics []string
	WeakTopics   []string
}

// Generator produces lesson content for a topic. Implementations call an
// external AI service and are expected to be slow and fallible; they must
// honor ctx cancellation and deadlines.
type Generator interface {
	// Generate returns a lesson for the topic at the topic's tier.
	Generate(ctx context.Context, topic *catalog.Topic, profile Profile) (*Lesson, error)

	// GenerateFreeForm returns a mini-lesson guided only by the user's
	// profile, used when no catalog topic is due or eligible.
	GenerateFreeForm(ctx context.Context, profile Profile) (*Lesson, error)
}
