package service

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-social/internal/audit"
	"github.com/weiawesome/wes-io-social/internal/cache"
	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/repository"
	"github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
)

type postServiceImpl struct {
	posts       repository.PostRepository
	users       repository.UserRepository
	cache       cache.Cache
	keys        cache.KeyBuilder
	ttl         time.Duration
	invalidator Invalidator
	events      eventSink
	timeouts    Timeouts
}

// NewPostService creates a PostService. Single-post reads are cached per
// viewer for ttl.
func NewPostService(
	posts repository.PostRepository,
	users repository.UserRepository,
	postCache cache.Cache,
	keys cache.KeyBuilder,
	ttl time.Duration,
	invalidator Invalidator,
	publisher pubsub.Publisher,
	topic string,
	timeouts Timeouts,
) PostService {
	return &postServiceImpl{
		posts:       posts,
		users:       users,
		cache:       postCache,
		keys:        keys,
		ttl:         ttl,
		invalidator: invalidator,
		events:      newEventSink(publisher, topic),
		timeouts:    timeouts,
	}
}

func (s *postServiceImpl) getUser(ctx context.Context, id string) (*domain.User, error) {
	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	u, err := s.users.GetByID(qctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return u, nil
}

func (s *postServiceImpl) getPost(ctx context.Context, id string) (*domain.Post, error) {
	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	p, err := s.posts.GetByID(qctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return p, nil
}

// authorOf loads the author; a missing author yields nil rather than an error.
func (s *postServiceImpl) authorOf(ctx context.Context, post *domain.Post) (*domain.User, error) {
	author, err := s.getUser(ctx, post.AuthorID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	return author, err
}

// Create publishes a post authored by the viewer.
func (s *postServiceImpl) Create(ctx context.Context, viewer domain.Viewer, req *domain.CreatePostRequest) (*domain.PostResponse, error) {
	author, err := s.getUser(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	if !author.IsActive {
		return nil, ErrForbidden
	}

	post := &domain.Post{
		AuthorID:   author.ID,
		Content:    req.Content,
		Status:     req.Status,
		Visibility: req.Visibility,
		Tags:       req.Tags,
	}
	if post.Status == "" {
		post.Status = domain.PostStatusPublished
	}
	if post.Visibility == "" {
		post.Visibility = domain.VisibilityPublic
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	if err := s.posts.Create(qctx, post); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to create post")
		return nil, err
	}

	s.invalidator.InvalidatePost(ctx, post, author)
	s.events.publish(ctx, pubsub.EventPostCreated, author.ID, pubsub.PostPayload{PostID: post.ID, AuthorID: author.ID})
	audit.LogWithDetail(ctx, audit.ActionPostCreate, author.ID, post.ID, "post created")

	return &domain.PostResponse{Post: *post, Author: domain.Summarize(author.ID, author)}, nil
}

// Get returns one post if the viewer may read it.
func (s *postServiceImpl) Get(ctx context.Context, viewer domain.Viewer, postID string) (*domain.PostResponse, error) {
	key := s.keys.Key(cache.EntityPost, postID, viewer.ID)

	cctx, cancel := withTimeout(ctx, s.timeouts.Cache)
	var cached domain.PostResponse
	err := cache.GetJSON(cctx, s.cache, key, &cached)
	cancel()
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("post cache read failed")
	}

	post, author, err := s.readable(ctx, viewer, postID)
	if err != nil {
		return nil, err
	}
	resp := &domain.PostResponse{Post: *post, Author: domain.Summarize(post.AuthorID, author)}

	cctx, cancel = withTimeout(context.WithoutCancel(ctx), s.timeouts.Cache)
	defer cancel()
	if err := cache.SetJSON(cctx, s.cache, key, resp, s.ttl); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("post cache write failed")
	}
	return resp, nil
}

// readable loads a post and its author and hides posts the viewer may not see.
func (s *postServiceImpl) readable(ctx context.Context, viewer domain.Viewer, postID string) (*domain.Post, *domain.User, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	author, err := s.authorOf(ctx, post)
	if err != nil {
		return nil, nil, err
	}

	follows := author != nil && author.IsFollowedBy(viewer.ID)
	if !post.VisibleTo(viewer, follows) {
		return nil, nil, ErrPostNotFound
	}
	return post, author, nil
}

// managed loads a post the viewer may modify.
func (s *postServiceImpl) managed(ctx context.Context, viewer domain.Viewer, postID string) (*domain.Post, *domain.User, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	if !viewer.CanManage(post.AuthorID) {
		return nil, nil, ErrForbidden
	}
	author, err := s.authorOf(ctx, post)
	if err != nil {
		return nil, nil, err
	}
	return post, author, nil
}

// Update edits a post for its author or an admin.
func (s *postServiceImpl) Update(ctx context.Context, viewer domain.Viewer, postID string, req *domain.UpdatePostRequest) (*domain.PostResponse, error) {
	post, author, err := s.managed(ctx, viewer, postID)
	if err != nil {
		return nil, err
	}

	if req.Content != nil {
		post.Content = *req.Content
	}
	if req.Status != nil {
		post.Status = *req.Status
	}
	if req.Visibility != nil {
		post.Visibility = *req.Visibility
	}
	if req.Tags != nil {
		post.Tags = req.Tags
	}

	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	if err := s.posts.Update(qctx, post); err != nil {
		return nil, mapRepoError(err)
	}

	s.invalidator.InvalidatePost(ctx, post, author)
	audit.LogWithDetail(ctx, audit.ActionPostUpdate, viewer.ID, post.ID, "post updated")
	return &domain.PostResponse{Post: *post, Author: domain.Summarize(post.AuthorID, author)}, nil
}

// Delete removes a post for its author or an admin.
func (s *postServiceImpl) Delete(ctx context.Context, viewer domain.Viewer, postID string) error {
	post, author, err := s.managed(ctx, viewer, postID)
	if err != nil {
		return err
	}

	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	if err := s.posts.Delete(qctx, post.ID); err != nil {
		return mapRepoError(err)
	}

	s.invalidator.InvalidatePost(ctx, post, author)
	s.events.publish(ctx, pubsub.EventPostDeleted, post.AuthorID, pubsub.PostPayload{PostID: post.ID, AuthorID: post.AuthorID})
	audit.LogWithDetail(ctx, audit.ActionPostDelete, viewer.ID, post.ID, "post deleted")
	return nil
}

// Engage increments one engagement counter on a post the viewer can read.
func (s *postServiceImpl) Engage(ctx context.Context, viewer domain.Viewer, postID string, counter domain.Counter) (*domain.PostResponse, error) {
	if !counter.Valid() {
		return nil, ErrValidation
	}
	post, author, err := s.readable(ctx, viewer, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != domain.PostStatusPublished {
		return nil, ErrForbidden
	}

	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	updated, err := s.posts.Increment(qctx, post.ID, counter, 1)
	if err != nil {
		return nil, mapRepoError(err)
	}

	s.invalidator.InvalidatePost(ctx, updated, author)
	return &domain.PostResponse{Post: *updated, Author: domain.Summarize(updated.AuthorID, author)}, nil
}

// ListByAuthor pages through an author's posts visible to the viewer.
func (s *postServiceImpl) ListByAuthor(ctx context.Context, viewer domain.Viewer, authorID string, limit, offset int) (*domain.PostPage, error) {
	limit, offset = normalizePage(limit, offset)

	author, err := s.getUser(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if !author.IsActive && !viewer.CanManage(author.ID) {
		return nil, ErrUserNotFound
	}

	filter := domain.PostFilter{
		AuthorIDs: []string{author.ID},
		Visible:   visibleTo(viewer, author.ID, author.IsFollowedBy(viewer.ID)),
		Limit:     limit,
		Offset:    offset,
	}
	if !viewer.CanManage(author.ID) {
		filter.Status = domain.PostStatusPublished
	}

	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	posts, err := s.posts.List(qctx, filter)
	if err != nil {
		return nil, err
	}

	page := &domain.PostPage{Posts: make([]domain.PostResponse, 0, len(posts)), Limit: limit, Offset: offset}
	summary := domain.Summarize(author.ID, author)
	for _, p := range posts {
		page.Posts = append(page.Posts, domain.PostResponse{Post: *p, Author: summary})
	}
	return page, nil
}

// Feed returns the newest published posts of the users the viewer follows.
func (s *postServiceImpl) Feed(ctx context.Context, viewer domain.Viewer, limit, offset int) (*domain.PostPage, error) {
	limit, offset = normalizePage(limit, offset)

	me, err := s.getUser(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	page := &domain.PostPage{Posts: []domain.PostResponse{}, Limit: limit, Offset: offset}
	if len(me.Following) == 0 {
		return page, nil
	}

	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	posts, err := s.posts.List(qctx, domain.PostFilter{
		AuthorIDs: me.Following,
		Status:    domain.PostStatusPublished,
		Visible:   []domain.PostVisibility{domain.VisibilityPublic, domain.VisibilityFollowers},
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, err
	}

	authorIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		authorIDs = append(authorIDs, p.AuthorID)
	}
	authors, err := s.users.GetByIDs(qctx, authorIDs)
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		author := authors[p.AuthorID]
		if author == nil || !author.IsActive {
			continue
		}
		page.Posts = append(page.Posts, domain.PostResponse{Post: *p, Author: domain.Summarize(p.AuthorID, author)})
	}
	return page, nil
}

var _ PostService = (*postServiceImpl)(nil)
