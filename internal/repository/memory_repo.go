package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-social/internal/domain"
)

// MemoryUserRepository keeps users in process memory. It backs the
// "memory" database driver and service tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	now   func() time.Time
}

// NewMemoryUserRepository creates an empty in-memory user store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]*domain.User),
		now:   time.Now,
	}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Followers = append([]string{}, u.Followers...)
	c.Following = append([]string{}, u.Following...)
	return &c
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrEmailExists
		}
		if domain.NormalizeUsername(u.Username) == domain.NormalizeUsername(user.Username) {
			return ErrUsernameExists
		}
	}

	if user.ID == "" {
		user.ID = newUserID()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	now := r.now()
	user.CreatedAt, user.UpdatedAt = now, now
	if user.Followers == nil {
		user.Followers = []string{}
	}
	if user.Following == nil {
		user.Following = []string{}
	}

	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := domain.NormalizeUsername(username)
	for _, u := range r.users {
		if domain.NormalizeUsername(u.Username) == want {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryUserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = cloneUser(u)
		}
	}
	return out, nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	for id, u := range r.users {
		if id == user.ID {
			continue
		}
		if domain.NormalizeUsername(u.Username) == domain.NormalizeUsername(user.Username) {
			return ErrUsernameExists
		}
		if strings.EqualFold(u.Email, user.Email) {
			return ErrEmailExists
		}
	}

	updated := cloneUser(user)
	updated.Followers = existing.Followers
	updated.Following = existing.Following
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = r.now()
	r.users[user.ID] = updated
	user.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *MemoryUserRepository) edges(u *domain.User, set EdgeSet) *[]string {
	if set == SetFollowers {
		return &u.Followers
	}
	return &u.Following
}

func (r *MemoryUserRepository) AddToSet(ctx context.Context, userID string, set EdgeSet, memberID string) (int, error) {
	if !set.Valid() {
		return 0, ErrInvalidEdgeSet
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	ids := r.edges(u, set)
	for _, id := range *ids {
		if id == memberID {
			return len(*ids), nil
		}
	}
	*ids = append(*ids, memberID)
	return len(*ids), nil
}

func (r *MemoryUserRepository) RemoveFromSet(ctx context.Context, userID string, set EdgeSet, memberID string) (int, error) {
	if !set.Valid() {
		return 0, ErrInvalidEdgeSet
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	ids := r.edges(u, set)
	kept := (*ids)[:0]
	for _, id := range *ids {
		if id != memberID {
			kept = append(kept, id)
		}
	}
	*ids = kept
	return len(kept), nil
}

func matchesUser(u *domain.User, f domain.UserFilter) bool {
	if f.Active != nil && u.IsActive != *f.Active {
		return false
	}
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.FirstName), q) ||
			strings.Contains(strings.ToLower(u.LastName), q)
	}
	return true
}

func (r *MemoryUserRepository) Count(ctx context.Context, filter domain.UserFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, u := range r.users {
		if matchesUser(u, filter) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryUserRepository) Search(ctx context.Context, filter domain.UserFilter, limit, offset int) ([]*domain.User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*domain.User
	for _, u := range r.users {
		if matchesUser(u, filter) {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return domain.NormalizeUsername(matched[i].Username) < domain.NormalizeUsername(matched[j].Username)
	})

	total := len(matched)
	out := make([]*domain.User, 0, limit)
	for i := offset; i < total && len(out) < limit; i++ {
		out = append(out, cloneUser(matched[i]))
	}
	return out, total, nil
}

var _ UserRepository = (*MemoryUserRepository)(nil)

// MemoryPostRepository keeps posts in process memory.
type MemoryPostRepository struct {
	mu    sync.RWMutex
	posts map[string]*domain.Post
	now   func() time.Time
	seq   int64
}

// NewMemoryPostRepository creates an empty in-memory post store.
func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{
		posts: make(map[string]*domain.Post),
		now:   time.Now,
	}
}

func clonePost(p *domain.Post) *domain.Post {
	c := *p
	c.Tags = append([]string{}, p.Tags...)
	return &c
}

func (r *MemoryPostRepository) Create(ctx context.Context, post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if post.ID == "" {
		post.ID = newPostID()
	}
	// Strictly increasing timestamps keep newest-first ordering stable.
	r.seq++
	now := r.now().Add(time.Duration(r.seq) * time.Nanosecond)
	post.CreatedAt, post.UpdatedAt = now, now
	r.posts[post.ID] = clonePost(post)
	return nil
}

func (r *MemoryPostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return clonePost(p), nil
}

func (r *MemoryPostRepository) Update(ctx context.Context, post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.posts[post.ID]
	if !ok {
		return ErrPostNotFound
	}
	updated := clonePost(post)
	updated.AuthorID = existing.AuthorID
	updated.CreatedAt = existing.CreatedAt
	updated.LikesCount = existing.LikesCount
	updated.CommentsCount = existing.CommentsCount
	updated.SharesCount = existing.SharesCount
	updated.ViewsCount = existing.ViewsCount
	updated.UpdatedAt = r.now()
	r.posts[post.ID] = updated
	*post = *clonePost(updated)
	return nil
}

func (r *MemoryPostRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(r.posts, id)
	return nil
}

func matchesPost(p *domain.Post, f domain.PostFilter) bool {
	if len(f.AuthorIDs) > 0 {
		found := false
		for _, id := range f.AuthorIDs {
			if p.AuthorID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if len(f.Visible) > 0 {
		for _, v := range f.Visible {
			if p.Visibility == v {
				return true
			}
		}
		return false
	}
	return true
}

func (r *MemoryPostRepository) List(ctx context.Context, filter domain.PostFilter) ([]*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*domain.Post
	for _, p := range r.posts {
		if matchesPost(p, filter) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	out := make([]*domain.Post, 0)
	for i := filter.Offset; i < len(matched); i++ {
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		out = append(out, clonePost(matched[i]))
	}
	return out, nil
}

func (r *MemoryPostRepository) Stats(ctx context.Context, authorID string) (*domain.PostStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s domain.PostStats
	for _, p := range r.posts {
		if p.AuthorID != authorID || p.Status != domain.PostStatusPublished {
			continue
		}
		s.TotalPosts++
		s.TotalLikes += p.LikesCount
		s.TotalComments += p.CommentsCount
		s.TotalShares += p.SharesCount
		s.TotalViews += p.ViewsCount
	}
	s.EngagementRate = domain.EngagementRate(s.TotalLikes, s.TotalComments, s.TotalShares, s.TotalViews)
	return &s, nil
}

func (r *MemoryPostRepository) Increment(ctx context.Context, id string, counter domain.Counter, delta int64) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	switch counter {
	case domain.CounterLikes:
		p.LikesCount += delta
	case domain.CounterComments:
		p.CommentsCount += delta
	case domain.CounterShares:
		p.SharesCount += delta
	case domain.CounterViews:
		p.ViewsCount += delta
	default:
		return nil, ErrInvalidCounter
	}
	return clonePost(p), nil
}

func (r *MemoryPostRepository) CountByStatus(ctx context.Context) (map[domain.PostStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[domain.PostStatus]int64{}
	for _, p := range r.posts {
		out[p.Status]++
	}
	return out, nil
}

var _ PostRepository = (*MemoryPostRepository)(nil)
