package catalog

import (
	"context"
)

// Repository defines read access to the topic catalog. The catalog is
// seeded once and treated as immutable at runtime.
type Repository interface {
	// List returns all topics in catalog order (tier, then position).
	List(ctx context.Context) ([]*Topic, error)
	GetByID(ctx context.Context, id int64) (*Topic, error)
	GetBySlug(ctx context.Context, slug string) (*Topic, error)
}
