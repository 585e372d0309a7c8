package catalog

import "time"

// Topic is a single unit of the Rust curriculum. Topics are immutable once
// loaded from the catalog; Position gives the authored catalog order within
// a difficulty tier.
type Topic struct {
	ID            int64
	Slug          string // stable short name, e.g. "ownership"
	Title         string
	Tier          Difficulty
	Position      int
	Prerequisites []int64 // topic IDs that must be learned first
	CreatedAt     time.Time
}
