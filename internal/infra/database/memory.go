package database

import (
	"context"
	"sync"
	"time"

	"rust_mentor_bot/internal/domain/catalog"
	"rust_mentor_bot/internal/domain/learner"
)

// In-memory repository implementations. They mirror the Postgres
// repositories' semantics (same sentinel errors, same optimistic
// concurrency on progress versions) and back the service tests.

// Compile-time interface checks, for both flavors of each repository.
var (
	_ learner.UserRepository        = (*MemoryUserRepository)(nil)
	_ learner.UserRepository        = (*PostgresUserRepository)(nil)
	_ learner.ProgressRepository    = (*MemoryProgressRepository)(nil)
	_ learner.ProgressRepository    = (*PostgresProgressRepository)(nil)
	_ learner.SessionRepository     = (*MemorySessionRepository)(nil)
	_ learner.SessionRepository     = (*PostgresSessionRepository)(nil)
	_ learner.AchievementRepository = (*MemoryAchievementRepository)(nil)
	_ learner.AchievementRepository = (*PostgresAchievementRepository)(nil)
	_ catalog.Repository            = (*MemoryCatalog)(nil)
	_ catalog.Repository            = (*PostgresCatalogRepository)(nil)
)

type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*learner.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{nextID: 1, byID: make(map[int64]*learner.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, u *learner.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.TelegramID == u.TelegramID {
			return ErrDuplicateTelegramID
		}
	}
	u.ID = r.nextID
	r.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (*learner.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) GetByTelegramID(_ context.Context, telegramID int64) (*learner.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryUserRepository) UpdatePreferences(_ context.Context, u *learner.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	stored.Frequency = u.Frequency
	stored.WindowStartMinute = u.WindowStartMinute
	stored.WindowEndMinute = u.WindowEndMinute
	stored.NotificationsEnabled = u.NotificationsEnabled
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) UpdateStreak(_ context.Context, u *learner.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	stored.StreakCount = u.StreakCount
	stored.LastActiveDay = u.LastActiveDay
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) MarkNotified(_ context.Context, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	stored.LastNotifiedAt.Time = at
	stored.LastNotifiedAt.Valid = true
	return nil
}

func (r *MemoryUserRepository) ListNotifiable(_ context.Context) ([]*learner.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]*learner.User, 0)
	for _, u := range r.byID {
		if u.NotificationsEnabled {
			cp := *u
			users = append(users, &cp)
		}
	}
	return users, nil
}

type MemoryProgressRepository struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*learner.ProgressRecord
}

func NewMemoryProgressRepository() *MemoryProgressRepository {
	return &MemoryProgressRepository{nextID: 1, byID: make(map[int64]*learner.ProgressRecord)}
}

func (r *MemoryProgressRepository) Get(_ context.Context, userID, topicID int64) (*learner.ProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.UserID == userID && p.TopicID == topicID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrProgressNotFound
}

func (r *MemoryProgressRepository) ListByUser(_ context.Context, userID int64) ([]*learner.ProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make([]*learner.ProgressRecord, 0)
	for _, p := range r.byID {
		if p.UserID == userID {
			cp := *p
			records = append(records, &cp)
		}
	}
	return records, nil
}

func (r *MemoryProgressRepository) Create(_ context.Context, p *learner.ProgressRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.UserID == p.UserID && existing.TopicID == p.TopicID {
			return ErrDuplicateProgress
		}
	}
	p.ID = r.nextID
	r.nextID++
	p.Version = 1
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *MemoryProgressRepository) Update(_ context.Context, p *learner.ProgressRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[p.ID]
	if !ok {
		return ErrProgressNotFound
	}
	if stored.Version != p.Version {
		return ErrVersionConflict
	}
	p.Version++
	p.UpdatedAt = time.Now()
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *MemoryProgressRepository) Archive(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return ErrProgressNotFound
	}
	stored.Archived = true
	stored.Version++
	return nil
}

type MemorySessionRepository struct {
	mu   sync.Mutex
	byID map[string]*learner.LearningSession
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{byID: make(map[string]*learner.LearningSession)}
}

func (r *MemorySessionRepository) Create(_ context.Context, s *learner.LearningSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.byID[s.ID] = &cp
	return nil
}

func (r *MemorySessionRepository) GetByID(_ context.Context, id string) (*learner.LearningSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MemorySessionRepository) UpdateState(_ context.Context, s *learner.LearningSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[s.ID]
	if !ok {
		return ErrSessionNotFound
	}
	stored.State = s.State
	stored.ContentRef = s.ContentRef
	return nil
}

func (r *MemorySessionRepository) Close(_ context.Context, s *learner.LearningSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[s.ID]
	if !ok || stored.State.Terminal() {
		return ErrSessionNotFound
	}
	stored.State = s.State
	stored.Outcome = s.Outcome
	stored.EndedAt = s.EndedAt
	return nil
}

// Sessions returns a snapshot of all stored sessions, for assertions.
func (r *MemorySessionRepository) Sessions() []*learner.LearningSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*learner.LearningSession, 0, len(r.byID))
	for _, s := range r.byID {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

type MemoryAchievementRepository struct {
	mu     sync.Mutex
	nextID int64
	awards []*learner.Achievement
}

func NewMemoryAchievementRepository() *MemoryAchievementRepository {
	return &MemoryAchievementRepository{nextID: 1}
}

func (r *MemoryAchievementRepository) Award(_ context.Context, a *learner.Achievement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.awards {
		if existing.UserID == a.UserID && existing.Kind == a.Kind {
			return ErrDuplicateAchievement
		}
	}
	a.ID = r.nextID
	r.nextID++
	cp := *a
	r.awards = append(r.awards, &cp)
	return nil
}

func (r *MemoryAchievementRepository) ListByUser(_ context.Context, userID int64) ([]*learner.Achievement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*learner.Achievement, 0)
	for _, a := range r.awards {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MemoryCatalog serves a fixed topic list.
type MemoryCatalog struct {
	topics []*catalog.Topic
}

func NewMemoryCatalog(topics []*catalog.Topic) *MemoryCatalog {
	return &MemoryCatalog{topics: topics}
}

func (c *MemoryCatalog) List(_ context.Context) ([]*catalog.Topic, error) {
	out := make([]*catalog.Topic, len(c.topics))
	copy(out, c.topics)
	return out, nil
}

func (c *MemoryCatalog) GetByID(_ context.Context, id int64) (*catalog.Topic, error) {
	for _, t := range c.topics {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, ErrTopicNotFound
}

func (c *MemoryCatalog) GetBySlug(_ context.Context, slug string) (*catalog.Topic, error) {
	for _, t := range c.topics {
		if t.Slug == slug {
			return t, nil
		}
	}
	return nil, ErrTopicNotFound
}
