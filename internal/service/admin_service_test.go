package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/service"
)

func TestDashboard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "alice")
	e.createUser(t, "bob")
	e.createAdmin(t)
	e.createPost(t, alice, domain.PostStatusPublished, domain.VisibilityPublic)
	e.createPost(t, alice, domain.PostStatusDraft, domain.VisibilityPublic)
	require.NoError(t, e.queue.Enqueue(ctx, domain.EdgeRepair{ActorID: "a", TargetID: "b"}))

	stats, err := e.admin.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.TotalUsers)
	require.Equal(t, int64(3), stats.ActiveUsers)
	require.Equal(t, int64(1), stats.AdminUsers)
	require.Equal(t, int64(1), stats.PostsByStatus[domain.PostStatusPublished])
	require.Equal(t, int64(1), stats.PostsByStatus[domain.PostStatusDraft])
	require.Equal(t, int64(1), stats.PendingRepairs)
}

func TestAdminStatusAndRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "alice")
	admin := e.createAdmin(t)

	_, err := e.admin.SetStatus(ctx, viewerOf(alice), admin.ID, false)
	require.ErrorIs(t, err, service.ErrForbidden)

	_, err = e.admin.SetStatus(ctx, viewerOf(admin), admin.ID, false)
	require.ErrorIs(t, err, service.ErrValidation)

	_, err = e.profile.GetProfile(ctx, "alice", domain.Viewer{})
	require.NoError(t, err)

	user, err := e.admin.SetStatus(ctx, viewerOf(admin), alice.ID, false)
	require.NoError(t, err)
	require.False(t, user.IsActive)

	_, err = e.profile.GetProfile(ctx, "alice", domain.Viewer{})
	require.ErrorIs(t, err, service.ErrUserNotFound)

	user, err = e.admin.SetStatus(ctx, viewerOf(admin), alice.ID, true)
	require.NoError(t, err)
	require.True(t, user.IsActive)

	user, err = e.admin.SetRole(ctx, viewerOf(admin), alice.ID, domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, user.Role)
	require.True(t, e.reload(t, alice.ID).IsAdmin())

	_, err = e.admin.SetRole(ctx, viewerOf(admin), alice.ID, domain.Role("root"))
	require.ErrorIs(t, err, service.ErrValidation)
	_, err = e.admin.SetRole(ctx, viewerOf(admin), "missing", domain.RoleUser)
	require.ErrorIs(t, err, service.ErrUserNotFound)
}
