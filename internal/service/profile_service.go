package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-social/internal/cache"
	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/repository"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
)

const defaultRecentPostsLimit = 5

// ProfileOptions tunes the profile aggregator.
type ProfileOptions struct {
	TTL              time.Duration
	RecentPostsLimit int
	Timeouts         Timeouts
}

type profileService struct {
	users repository.UserRepository
	posts repository.PostRepository
	cache cache.Cache
	keys  cache.KeyBuilder
	opts  ProfileOptions
	sf    singleflight.Group
}

// NewProfileService creates a ProfileService.
func NewProfileService(
	users repository.UserRepository,
	posts repository.PostRepository,
	profileCache cache.Cache,
	keys cache.KeyBuilder,
	opts ProfileOptions,
) ProfileService {
	if opts.RecentPostsLimit <= 0 {
		opts.RecentPostsLimit = defaultRecentPostsLimit
	}
	return &profileService{
		users: users,
		posts: posts,
		cache: profileCache,
		keys:  keys,
		opts:  opts,
	}
}

// GetProfile returns the subject's profile as seen by viewer. Cached views
// are served as-is; a miss recomputes from the store and refills the cache.
func (s *profileService) GetProfile(ctx context.Context, username string, viewer domain.Viewer) (*domain.ProfileView, error) {
	key := s.keys.Profile(username, viewer.ID)

	if view, ok := s.cached(ctx, key); ok {
		return view, nil
	}

	// Waiters share this load, so one caller going away must not fail the rest.
	loadCtx := context.WithoutCancel(ctx)
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		view, err := s.build(loadCtx, username, viewer)
		if err != nil {
			return nil, err
		}
		s.store(loadCtx, key, view)
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.ProfileView), nil
}

func (s *profileService) cached(ctx context.Context, key string) (*domain.ProfileView, bool) {
	cctx, cancel := withTimeout(ctx, s.opts.Timeouts.Cache)
	defer cancel()

	var view domain.ProfileView
	err := cache.GetJSON(cctx, s.cache, key, &view)
	if err == nil {
		return &view, true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str(pkglog.FieldCacheKey, key).Msg("profile cache read failed, recomputing")
	}
	return nil, false
}

// store writes synchronously so a later invalidation cannot be overtaken by
// a delayed write of this older view.
func (s *profileService) store(ctx context.Context, key string, view *domain.ProfileView) {
	cctx, cancel := withTimeout(context.WithoutCancel(ctx), s.opts.Timeouts.Cache)
	defer cancel()

	if err := cache.SetJSON(cctx, s.cache, key, view, s.opts.TTL); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str(pkglog.FieldCacheKey, key).Msg("profile cache write failed")
	}
}

func (s *profileService) build(ctx context.Context, username string, viewer domain.Viewer) (*domain.ProfileView, error) {
	qctx, cancel := withTimeout(ctx, s.opts.Timeouts.Query)
	subject, err := s.users.GetByUsername(qctx, username)
	cancel()
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !subject.IsActive && !viewer.CanManage(subject.ID) {
		return nil, ErrUserNotFound
	}

	followsSubject := domain.DeriveRelationship(subject, viewer).FollowsSubject()

	var (
		stats  *domain.PostStats
		recent []*domain.Post
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		qctx, cancel := withTimeout(gctx, s.opts.Timeouts.Query)
		defer cancel()
		var err error
		stats, err = s.posts.Stats(qctx, subject.ID)
		return err
	})

	g.Go(func() error {
		qctx, cancel := withTimeout(gctx, s.opts.Timeouts.Query)
		defer cancel()
		var err error
		recent, err = s.posts.List(qctx, domain.PostFilter{
			AuthorIDs: []string{subject.ID},
			Status:    domain.PostStatusPublished,
			Visible:   visibleTo(viewer, subject.ID, followsSubject),
			Limit:     s.opts.RecentPostsLimit,
		})
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	posts := make([]domain.Post, 0, len(recent))
	for _, p := range recent {
		if p.VisibleTo(viewer, followsSubject) {
			posts = append(posts, *p)
		}
	}
	return domain.NewProfileView(subject, viewer, *stats, posts), nil
}

// visibleTo lists the post visibilities viewer may read on authorID's posts.
func visibleTo(viewer domain.Viewer, authorID string, followsAuthor bool) []domain.PostVisibility {
	if viewer.CanManage(authorID) {
		return nil
	}
	visible := []domain.PostVisibility{domain.VisibilityPublic}
	if followsAuthor {
		visible = append(visible, domain.VisibilityFollowers)
	}
	return visible
}

var _ ProfileService = (*profileService)(nil)
