package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-social/internal/cache"
	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/reconciler"
	"github.com/weiawesome/wes-io-social/internal/repository"
	"github.com/weiawesome/wes-io-social/internal/service"
	"github.com/weiawesome/wes-io-social/pkg/jwt"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
)

var errStoreDown = errors.New("store unavailable")

// flakyUsers fails writes to followers sets while failFollowers is set.
type flakyUsers struct {
	repository.UserRepository
	mu            sync.Mutex
	failFollowers bool
}

func (f *flakyUsers) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFollowers = v
}

func (f *flakyUsers) failing(set repository.EdgeSet) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failFollowers && set == repository.SetFollowers
}

func (f *flakyUsers) AddToSet(ctx context.Context, userID string, set repository.EdgeSet, memberID string) (int, error) {
	if f.failing(set) {
		return 0, errStoreDown
	}
	return f.UserRepository.AddToSet(ctx, userID, set, memberID)
}

func (f *flakyUsers) RemoveFromSet(ctx context.Context, userID string, set repository.EdgeSet, memberID string) (int, error) {
	if f.failing(set) {
		return 0, errStoreDown
	}
	return f.UserRepository.RemoveFromSet(ctx, userID, set, memberID)
}

// brokenCache fails every call like an unreachable Redis.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("%w: connection refused", cache.ErrCacheUnavailable)
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return fmt.Errorf("%w: connection refused", cache.ErrCacheUnavailable)
}

func (brokenCache) Delete(context.Context, ...string) error {
	return fmt.Errorf("%w: connection refused", cache.ErrCacheUnavailable)
}

func (brokenCache) Exists(context.Context, string) (bool, error) {
	return false, fmt.Errorf("%w: connection refused", cache.ErrCacheUnavailable)
}

func (brokenCache) Close() error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*pubsub.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, event *pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type env struct {
	users      *flakyUsers
	posts      *repository.MemoryPostRepository
	cache      cache.Cache
	keys       cache.KeyBuilder
	queue      *reconciler.MemoryQueue
	reconciler *reconciler.Reconciler
	tokens     *jwt.Manager
	events     *recordingPublisher

	follow  service.FollowService
	profile service.ProfileService
	user    service.UserService
	post    service.PostService
	admin   service.AdminService
}

type envOption func(*envConfig)

type envConfig struct {
	cache       cache.Cache
	recentLimit int
}

func withCache(c cache.Cache) envOption {
	return func(cfg *envConfig) { cfg.cache = c }
}

func withRecentLimit(n int) envOption {
	return func(cfg *envConfig) { cfg.recentLimit = n }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()

	cfg := envConfig{recentLimit: 5}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.cache == nil {
		mc, err := cache.NewMemoryCache(1024)
		require.NoError(t, err)
		cfg.cache = mc
	}

	tokens, err := jwt.NewManager("test-secret", time.Hour, "wes-io-social")
	require.NoError(t, err)

	e := &env{
		users:  &flakyUsers{UserRepository: repository.NewMemoryUserRepository()},
		posts:  repository.NewMemoryPostRepository(),
		cache:  cfg.cache,
		keys:   cache.NewKeyBuilder("social"),
		queue:  reconciler.NewMemoryQueue(),
		tokens: tokens,
		events: &recordingPublisher{},
	}
	timeouts := service.Timeouts{Query: time.Second, Cache: 100 * time.Millisecond}
	inv := service.NewInvalidator(e.cache, e.keys, timeouts.Cache)
	e.reconciler = reconciler.New(e.queue, e.users, inv, reconciler.Config{BatchSize: 10})

	e.follow = service.NewFollowService(e.users, inv, e.queue, e.events, "social-events", timeouts)
	e.profile = service.NewProfileService(e.users, e.posts, e.cache, e.keys, service.ProfileOptions{
		TTL:              5 * time.Minute,
		RecentPostsLimit: cfg.recentLimit,
		Timeouts:         timeouts,
	})
	e.user = service.NewUserService(e.users, tokens, nil, inv, e.events, "social-events", timeouts)
	e.post = service.NewPostService(e.posts, e.users, e.cache, e.keys, 5*time.Minute, inv, e.events, "social-events", timeouts)
	e.admin = service.NewAdminService(e.users, e.posts, tokens, inv, e.queue, e.reconciler, e.events, "social-events", timeouts)
	return e
}

func (e *env) createUser(t *testing.T, username string) *domain.User {
	t.Helper()
	if username == "" {
		username = "u" + gofakeit.DigitN(8)
	}
	u := &domain.User{
		Username:     username,
		Email:        fmt.Sprintf("%s@example.com", username),
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
		PasswordHash: "unused",
		Role:         domain.RoleUser,
		IsActive:     true,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *env) createAdmin(t *testing.T) *domain.User {
	t.Helper()
	u := e.createUser(t, "")
	u.Role = domain.RoleAdmin
	require.NoError(t, e.users.Update(context.Background(), u))
	return u
}

func (e *env) reload(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := e.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (e *env) createPost(t *testing.T, author *domain.User, status domain.PostStatus, vis domain.PostVisibility) *domain.Post {
	t.Helper()
	p := &domain.Post{
		AuthorID:   author.ID,
		Content:    gofakeit.Sentence(6),
		Status:     status,
		Visibility: vis,
	}
	require.NoError(t, e.posts.Create(context.Background(), p))
	return p
}

func viewerOf(u *domain.User) domain.Viewer {
	return domain.Viewer{ID: u.ID, Role: u.Role}
}
