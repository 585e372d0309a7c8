package catalog

import (
	"encoding"
	"fmt"
)

// Difficulty is the declared tier of a topic.
type Difficulty int

const (
	Beginner Difficulty = iota + 1
	Intermediate
	Advanced
)

var (
	difficultyNames = [...]string{Beginner: "beginner", Intermediate: "intermediate", Advanced: "advanced"}

	difficultyByName = map[string]Difficulty{
		"beginner":     Beginner,
		"intermediate": Intermediate,
		"advanced":     Advanced,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = Difficulty(0)
	_ encoding.TextMarshaler   = Difficulty(0)
	_ encoding.TextUnmarshaler = (*Difficulty)(nil)
)

// IsValid reports whether d is one of the declared tiers.
func (d Difficulty) IsValid() bool {
	return d >= Beginner && d <= Advanced
}

// String returns the lowercase tier name, or "Difficulty(n)" for invalid values.
func (d Difficulty) String() string {
	if d.IsValid() {
		return difficultyNames[d]
	}
	return fmt.Sprintf("Difficulty(%d)", int(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d Difficulty) MarshalText() ([]byte, error) {
	if !d.IsValid() {
		return nil, fmt.Errorf("catalog: invalid difficulty: %d", int(d))
	}
	return []byte(difficultyNames[d]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Difficulty) UnmarshalText(text []byte) error {
	v, ok := difficultyByName[string(text)]
	if !ok {
		return fmt.Errorf("catalog: invalid difficulty: %q", text)
	}
	*d = v
	return nil
}
