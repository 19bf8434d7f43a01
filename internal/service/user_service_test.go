package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/repository"
	"github.com/weiawesome/wes-io-social/internal/service"
	"github.com/weiawesome/wes-io-social/pkg/storage"
)

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp, err := e.user.Register(ctx, &domain.RegisterRequest{
		Username: "Alice",
		Email:    "Alice@Example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "alice@example.com", resp.User.Email)

	claims, err := e.tokens.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, claims.UserID)
	require.Equal(t, []string{"user"}, claims.Roles)

	_, err = e.user.Register(ctx, &domain.RegisterRequest{Username: "alice", Email: "other@example.com", Password: "password123"})
	require.ErrorIs(t, err, service.ErrUsernameExists)
	_, err = e.user.Register(ctx, &domain.RegisterRequest{Username: "alice2", Email: "alice@example.com", Password: "password123"})
	require.ErrorIs(t, err, service.ErrEmailExists)

	login, err := e.user.Login(ctx, &domain.LoginRequest{Email: "ALICE@example.com", Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, login.User.ID)

	_, err = e.user.Login(ctx, &domain.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = e.user.Login(ctx, &domain.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	me, err := e.user.Me(ctx, resp.User.ID)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", me.Email)
}

func TestUpdateUserPermissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	admin := e.createAdmin(t)
	bio := "hello"

	_, err := e.user.UpdateUser(ctx, viewerOf(bob), alice.ID, &domain.UpdateUserRequest{Bio: &bio})
	require.ErrorIs(t, err, service.ErrForbidden)

	_, err = e.user.UpdateUser(ctx, viewerOf(alice), alice.ID, &domain.UpdateUserRequest{})
	require.ErrorIs(t, err, service.ErrValidation)

	updated, err := e.user.UpdateUser(ctx, viewerOf(admin), alice.ID, &domain.UpdateUserRequest{Bio: &bio})
	require.NoError(t, err)
	require.Equal(t, bio, updated.Bio)

	taken := "BOB"
	_, err = e.user.UpdateUser(ctx, viewerOf(alice), alice.ID, &domain.UpdateUserRequest{Username: &taken})
	require.ErrorIs(t, err, service.ErrUsernameExists)

	require.ErrorIs(t, e.user.Deactivate(ctx, viewerOf(bob), alice.ID), service.ErrForbidden)
}

func TestDeactivateRevokesTokensAndKeepsEdges(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp, err := e.user.Register(ctx, &domain.RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "password123"})
	require.NoError(t, err)
	bob := e.createUser(t, "bob")
	carol := e.reload(t, resp.User.ID)

	_, err = e.follow.Follow(ctx, carol.ID, bob.ID)
	require.NoError(t, err)

	require.NoError(t, e.user.Deactivate(ctx, viewerOf(carol), carol.ID))
	require.NoError(t, e.user.Deactivate(ctx, viewerOf(carol), carol.ID))

	_, err = e.tokens.ValidateToken(resp.AccessToken)
	require.Error(t, err)

	_, err = e.user.Login(ctx, &domain.LoginRequest{Email: "carol@example.com", Password: "password123"})
	require.ErrorIs(t, err, service.ErrForbidden)

	// The edge remains; the follower renders as unavailable.
	page, err := e.user.ListFollowers(ctx, bob.ID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, domain.UserSummary{
		ID:          carol.ID,
		Username:    domain.UnavailableUsername,
		DisplayName: domain.UnavailableDisplayName,
		Unavailable: true,
	}, page.Users[0])

	_, err = e.user.ListFollowing(ctx, carol.ID, 10, 0)
	require.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestListEdgesWithDanglingReference(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")

	_, err := e.follow.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = e.users.AddToSet(ctx, alice.ID, repository.SetFollowing, "deleted-user")
	require.NoError(t, err)

	page, err := e.user.ListFollowing(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, "bob", page.Users[0].Username)
	require.False(t, page.Users[0].Unavailable)
	require.True(t, page.Users[1].Unavailable)
	require.Equal(t, "deleted-user", page.Users[1].ID)

	page, err = e.user.ListFollowing(ctx, alice.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	require.True(t, page.Users[0].Unavailable)

	page, err = e.user.ListFollowing(ctx, alice.ID, 10, 5)
	require.NoError(t, err)
	require.Empty(t, page.Users)
}

func TestSearchUsers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, "gopher_one")
	e.createUser(t, "gopher_two")
	gone := e.createUser(t, "gopher_gone")
	gone.IsActive = false
	require.NoError(t, e.users.Update(ctx, gone))

	page, err := e.user.Search(ctx, "GOPHER", 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, "gopher_one", page.Users[0].Username)

	_, err = e.user.Search(ctx, "  ", 10, 0)
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestAvatarUploadNeedsStorage(t *testing.T) {
	e := newEnv(t)
	alice := e.createUser(t, "alice")

	_, err := e.user.GenerateAvatarUploadURL(context.Background(), alice.ID, "image/png")
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestHandleAvatarProcessed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "alice")

	media, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), BaseURL: "/media"})
	require.NoError(t, err)
	timeouts := service.Timeouts{Query: time.Second, Cache: 100 * time.Millisecond}
	users := service.NewUserService(e.users, e.tokens, media,
		service.NewInvalidator(e.cache, e.keys, timeouts.Cache), e.events, "social-events", timeouts)

	_, err = users.GenerateAvatarUploadURL(ctx, alice.ID, "image/png")
	require.ErrorIs(t, err, storage.ErrPresignUnsupported)

	rawKey := "avatars/raw/" + alice.ID + "/upload.png"
	raw := media.Path(rawKey)
	require.NoError(t, os.MkdirAll(filepath.Dir(raw), 0o755))
	require.NoError(t, os.WriteFile(raw, []byte("png"), 0o644))

	_, err = e.profile.GetProfile(ctx, "alice", domain.Viewer{})
	require.NoError(t, err)

	require.NoError(t, users.HandleAvatarProcessed(ctx, alice.ID, "avatars/md/"+alice.ID+".webp", rawKey))

	view, err := e.profile.GetProfile(ctx, "alice", domain.Viewer{})
	require.NoError(t, err)
	require.Equal(t, "/media/avatars/md/"+alice.ID+".webp", view.User.AvatarURL)
	_, err = os.Stat(raw)
	require.True(t, os.IsNotExist(err))

	require.ErrorIs(t, users.HandleAvatarProcessed(ctx, "missing", "k", ""), service.ErrUserNotFound)
}
