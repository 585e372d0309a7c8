package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rust_mentor_bot/internal/domain/catalog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Custom errors
var ErrTopicNotFound = fmt.Errorf("topic not found")

type PostgresCatalogRepository struct {
	db *sqlx.DB
}

func NewPostgresCatalogRepository(db *sqlx.DB) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{db: db}
}

func scanTopic(scan func(dest ...any) error) (*catalog.Topic, error) {
	var (
		t       catalog.Topic
		tier    string
		prereqs pq.Int64Array
		created time.Time
	)
	if err := scan(&t.ID, &t.Slug, &t.Title, &tier, &t.Position, &prereqs, &created); err != nil {
		return nil, err
	}
	if err := t.Tier.UnmarshalText([]byte(tier)); err != nil {
		return nil, fmt.Errorf("error decoding topic tier: %w", err)
	}
	t.Prerequisites = []int64(prereqs)
	t.CreatedAt = created
	return &t, nil
}

const topicColumns = `id, slug, title, tier, position, prerequisites, created_at`

func (r *PostgresCatalogRepository) List(ctx context.Context) ([]*catalog.Topic, error) {
	query := `SELECT ` + topicColumns + ` FROM topics ORDER BY tier, position, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing topics: %w", err)
	}
	defer rows.Close()

	topics := make([]*catalog.Topic, 0)
	for rows.Next() {
		t, err := scanTopic(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("error scanning topic: %w", err)
		}
		topics = append(topics, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topics: %w", err)
	}
	return topics, nil
}

func (r *PostgresCatalogRepository) GetByID(ctx context.Context, id int64) (*catalog.Topic, error) {
	query := `SELECT ` + topicColumns + ` FROM topics WHERE id = $1`
	t, err := scanTopic(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("error getting topic by ID: %w", err)
	}
	return t, nil
}

func (r *PostgresCatalogRepository) GetBySlug(ctx context.Context, slug string) (*catalog.Topic, error) {
	query := `SELECT ` + topicColumns + ` FROM topics WHERE slug = $1`
	t, err := scanTopic(r.db.QueryRowContext(ctx, query, slug).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("error getting topic by slug: %w", err)
	}
	return t, nil
}

// seedTopic describes one entry of the built-in Rust curriculum.
type seedTopic struct {
	slug    string
	title   string
	tier    catalog.Difficulty
	pos     int
	prereqs []string // slugs, resolved to IDs during seeding
}

var rustCurriculum = []seedTopic{
	{slug: "variables", title: "Variables and Mutability", tier: catalog.Beginner, pos: 1},
	{slug: "data-types", title: "Scalar and Compound Types", tier: catalog.Beginner, pos: 2, prereqs: []string{"variables"}},
	{slug: "functions", title: "Functions and Control Flow", tier: catalog.Beginner, pos: 3, prereqs: []string{"variables"}},
	{slug: "ownership", title: "Ownership", tier: catalog.Beginner, pos: 4, prereqs: []string{"functions"}},
	{slug: "borrowing", title: "References and Borrowing", tier: catalog.Beginner, pos: 5, prereqs: []string{"ownership"}},
	{slug: "structs", title: "Structs and Methods", tier: catalog.Intermediate, pos: 1, prereqs: []string{"ownership"}},
	{slug: "enums", title: "Enums and Pattern Matching", tier: catalog.Intermediate, pos: 2, prereqs: []string{"structs"}},
	{slug: "error-handling", title: "Error Handling with Result", tier: catalog.Intermediate, pos: 3, prereqs: []string{"enums"}},
	{slug: "traits", title: "Traits and Generics", tier: catalog.Intermediate, pos: 4, prereqs: []string{"structs"}},
	{slug: "collections", title: "Common Collections", tier: catalog.Intermediate, pos: 5, prereqs: []string{"borrowing"}},
	{slug: "lifetimes", title: "Lifetimes", tier: catalog.Advanced, pos: 1, prereqs: []string{"borrowing", "traits"}},
	{slug: "closures", title: "Closures and Iterators", tier: catalog.Advanced, pos: 2, prereqs: []string{"traits", "collections"}},
	{slug: "smart-pointers", title: "Smart Pointers", tier: catalog.Advanced, pos: 3, prereqs: []string{"lifetimes"}},
	{slug: "concurrency", title: "Fearless Concurrency", tier: catalog.Advanced, pos: 4, prereqs: []string{"smart-pointers", "closures"}},
}

// SeedCatalog inserts the built-in curriculum. Existing slugs are left
// untouched, so re-running at startup is safe.
func (r *PostgresCatalogRepository) SeedCatalog(ctx context.Context) error {
	ids := make(map[string]int64, len(rustCurriculum))

	for _, st := range rustCurriculum {
		prereqIDs := make(pq.Int64Array, 0, len(st.prereqs))
		for _, slug := range st.prereqs {
			id, ok := ids[slug]
			if !ok {
				// Prerequisite already existed in the table from an
				// earlier run; look it up.
				existing, err := r.GetBySlug(ctx, slug)
				if err != nil {
					return fmt.Errorf("error resolving prerequisite %q: %w", slug, err)
				}
				id = existing.ID
				ids[slug] = id
			}
			prereqIDs = append(prereqIDs, id)
		}

		tierText, err := st.tier.MarshalText()
		if err != nil {
			return fmt.Errorf("error encoding tier for %q: %w", st.slug, err)
		}

		var id int64
		query := `INSERT INTO topics (slug, title, tier, position, prerequisites)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
			RETURNING id`
		if err := r.db.QueryRowContext(ctx, query, st.slug, st.title, string(tierText), st.pos, prereqIDs).Scan(&id); err != nil {
			return fmt.Errorf("error seeding topic %q: %w", st.slug, err)
		}
		ids[st.slug] = id
	}
	return nil
}
