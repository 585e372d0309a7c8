package openai

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseLesson(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantTitle    string
		wantExercise string
	}{
		{
			name:         "heading and exercise section",
			raw:          "# Ownership Basics\n\nEvery value has a single owner.\n\nExercise: write a function that takes ownership of a String.",
			wantTitle:    "Ownership Basics",
			wantExercise: "write a function that takes ownership of a String.",
		},
		{
			name:      "no heading falls back",
			raw:       "Every value has a single owner.",
			wantTitle: "Rust Mini-Lesson",
		},
		{
			name:         "case-insensitive exercise marker",
			raw:          "## Borrowing\n\nBody text here.\n\nEXERCISE: borrow instead of move.",
			wantTitle:    "Borrowing",
			wantExercise: "borrow instead of move.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lesson := parseLesson(tt.raw, "Rust Mini-Lesson")
			if lesson.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", lesson.Title, tt.wantTitle)
			}
			if lesson.Exercise != tt.wantExercise {
				t.Errorf("exercise = %q, want %q", lesson.Exercise, tt.wantExercise)
			}
			if lesson.Body == "" {
				t.Error("body is empty")
			}
		})
	}
}

func TestParseLessonMultiByteCaseFolding(t *testing.T) {
	// İ (U+0130) lowercases to a longer byte sequence, so a marker search
	// on a folded copy of the string would misalign the split offsets.
	body := "# Başlık\n\n" + strings.Repeat("İ", 12) + " iterator notes.\n"
	raw := body + "\nExercise: do it."

	lesson := parseLesson(raw, "Rust Mini-Lesson")
	if lesson.Exercise != "do it." {
		t.Errorf("exercise = %q, want %q", lesson.Exercise, "do it.")
	}
	if !utf8.ValidString(lesson.Body) {
		t.Errorf("body is not valid UTF-8: %q", lesson.Body)
	}
	if !strings.HasSuffix(lesson.Body, "iterator notes.") {
		t.Errorf("body truncated at the wrong place: %q", lesson.Body)
	}
	if lesson.Title != "Başlık" {
		t.Errorf("title = %q, want %q", lesson.Title, "Başlık")
	}
}
