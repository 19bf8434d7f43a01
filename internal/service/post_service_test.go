package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/service"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
)

func TestPostLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")

	created, err := e.post.Create(ctx, viewerOf(alice), &domain.CreatePostRequest{
		Content:    "first post",
		Visibility: domain.VisibilityFollowers,
	})
	require.NoError(t, err)
	require.Equal(t, domain.PostStatusPublished, created.Status)
	require.Equal(t, "alice", created.Author.Username)

	_, err = e.post.Get(ctx, viewerOf(bob), created.ID)
	require.ErrorIs(t, err, service.ErrPostNotFound)

	_, err = e.follow.Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	got, err := e.post.Get(ctx, viewerOf(bob), created.ID)
	require.NoError(t, err)
	require.Equal(t, "first post", got.Content)

	content := "edited"
	_, err = e.post.Update(ctx, viewerOf(bob), created.ID, &domain.UpdatePostRequest{Content: &content})
	require.ErrorIs(t, err, service.ErrForbidden)

	updated, err := e.post.Update(ctx, viewerOf(alice), created.ID, &domain.UpdatePostRequest{Content: &content})
	require.NoError(t, err)
	require.Equal(t, "edited", updated.Content)

	got, err = e.post.Get(ctx, viewerOf(alice), created.ID)
	require.NoError(t, err)
	require.Equal(t, "edited", got.Content)

	liked, err := e.post.Engage(ctx, viewerOf(bob), created.ID, domain.CounterLikes)
	require.NoError(t, err)
	require.Equal(t, int64(1), liked.LikesCount)

	require.ErrorIs(t, e.post.Delete(ctx, viewerOf(bob), created.ID), service.ErrForbidden)
	require.NoError(t, e.post.Delete(ctx, viewerOf(alice), created.ID))
	_, err = e.post.Get(ctx, viewerOf(alice), created.ID)
	require.ErrorIs(t, err, service.ErrPostNotFound)

	require.Contains(t, e.events.types(), pubsub.EventPostCreated)
	require.Contains(t, e.events.types(), pubsub.EventPostDeleted)
}

func TestPostAuthorPlaceholder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	post := e.createPost(t, alice, domain.PostStatusPublished, domain.VisibilityPublic)

	require.NoError(t, e.user.Deactivate(ctx, viewerOf(alice), alice.ID))

	got, err := e.post.Get(ctx, viewerOf(bob), post.ID)
	require.NoError(t, err)
	require.True(t, got.Author.Unavailable)
	require.Equal(t, domain.UnavailableUsername, got.Author.Username)

	_, err = e.post.ListByAuthor(ctx, viewerOf(bob), alice.ID, 10, 0)
	require.ErrorIs(t, err, service.ErrUserNotFound)

	_, err = e.post.Create(ctx, viewerOf(alice), &domain.CreatePostRequest{Content: "still here?"})
	require.ErrorIs(t, err, service.ErrForbidden)
}

func TestListByAuthorVisibility(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")

	e.createPost(t, alice, domain.PostStatusPublished, domain.VisibilityPublic)
	e.createPost(t, alice, domain.PostStatusPublished, domain.VisibilityFollowers)
	e.createPost(t, alice, domain.PostStatusDraft, domain.VisibilityPublic)

	page, err := e.post.ListByAuthor(ctx, domain.Viewer{}, alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)

	_, err = e.follow.Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	page, err = e.post.ListByAuthor(ctx, viewerOf(bob), alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)

	page, err = e.post.ListByAuthor(ctx, viewerOf(alice), alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Posts, 3)
}

func TestFeed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	carol := e.createUser(t, "carol")

	page, err := e.post.Feed(ctx, viewerOf(alice), 10, 0)
	require.NoError(t, err)
	require.Empty(t, page.Posts)

	_, err = e.follow.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	older := e.createPost(t, bob, domain.PostStatusPublished, domain.VisibilityPublic)
	newer := e.createPost(t, bob, domain.PostStatusPublished, domain.VisibilityFollowers)
	e.createPost(t, bob, domain.PostStatusPublished, domain.VisibilityPrivate)
	e.createPost(t, carol, domain.PostStatusPublished, domain.VisibilityPublic)

	page, err = e.post.Feed(ctx, viewerOf(alice), 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	require.Equal(t, newer.ID, page.Posts[0].ID)
	require.Equal(t, older.ID, page.Posts[1].ID)
	require.Equal(t, "bob", page.Posts[0].Author.Username)
}
