package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-social/internal/domain"
)

// FollowService mutates the follow graph.
type FollowService interface {
	Follow(ctx context.Context, actorID, targetID string) (*domain.FollowResult, error)
	Unfollow(ctx context.Context, actorID, targetID string) (*domain.FollowResult, error)
}

// ProfileService builds viewer-specific profile projections.
type ProfileService interface {
	GetProfile(ctx context.Context, username string, viewer domain.Viewer) (*domain.ProfileView, error)
}

// UserService manages accounts and user listings.
type UserService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error)
	Me(ctx context.Context, userID string) (*domain.PublicUser, error)
	UpdateUser(ctx context.Context, viewer domain.Viewer, userID string, req *domain.UpdateUserRequest) (*domain.PublicUser, error)
	Deactivate(ctx context.Context, viewer domain.Viewer, userID string) error
	ListFollowers(ctx context.Context, userID string, limit, offset int) (*domain.UserPage, error)
	ListFollowing(ctx context.Context, userID string, limit, offset int) (*domain.UserPage, error)
	Search(ctx context.Context, query string, limit, offset int) (*domain.UserPage, error)
	GenerateAvatarUploadURL(ctx context.Context, userID, contentType string) (*domain.AvatarPresignResponse, error)
	// HandleAvatarProcessed points the user's avatar at a processed object
	// and removes the raw upload.
	HandleAvatarProcessed(ctx context.Context, userID, key, rawKey string) error
}

// PostService manages posts and engagements.
type PostService interface {
	Create(ctx context.Context, viewer domain.Viewer, req *domain.CreatePostRequest) (*domain.PostResponse, error)
	Get(ctx context.Context, viewer domain.Viewer, postID string) (*domain.PostResponse, error)
	Update(ctx context.Context, viewer domain.Viewer, postID string, req *domain.UpdatePostRequest) (*domain.PostResponse, error)
	Delete(ctx context.Context, viewer domain.Viewer, postID string) error
	Engage(ctx context.Context, viewer domain.Viewer, postID string, counter domain.Counter) (*domain.PostResponse, error)
	ListByAuthor(ctx context.Context, viewer domain.Viewer, authorID string, limit, offset int) (*domain.PostPage, error)
	Feed(ctx context.Context, viewer domain.Viewer, limit, offset int) (*domain.PostPage, error)
}

// AdminService exposes operator views and controls.
type AdminService interface {
	Dashboard(ctx context.Context) (*domain.DashboardStats, error)
	SetStatus(ctx context.Context, admin domain.Viewer, userID string, active bool) (*domain.PublicUser, error)
	SetRole(ctx context.Context, admin domain.Viewer, userID string, role domain.Role) (*domain.PublicUser, error)
	PendingRepairs(ctx context.Context, limit int) ([]domain.EdgeRepair, error)
	RunReconciliation(ctx context.Context) (*domain.ReconcileReport, error)
}

// Invalidator removes cached projections after a mutation. It never fails.
type Invalidator interface {
	Invalidate(ctx context.Context, entityType, entityID string)
	InvalidateUser(ctx context.Context, user *domain.User, viewerIDs ...string)
	InvalidatePair(ctx context.Context, a, b *domain.User)
	InvalidatePost(ctx context.Context, post *domain.Post, author *domain.User)
}

// RepairQueue records edges that need reconciliation.
type RepairQueue interface {
	Enqueue(ctx context.Context, repair domain.EdgeRepair) error
	Pending(ctx context.Context, limit int) ([]domain.EdgeRepair, error)
	Len(ctx context.Context) (int64, error)
}

// Repairer runs a reconciliation pass on demand.
type Repairer interface {
	RunOnce(ctx context.Context) (*domain.ReconcileReport, error)
}

// TokenManager issues and revokes access tokens.
type TokenManager interface {
	GenerateToken(userID, email, username string, roles []string) (string, int64, error)
	RevokeUserTokens(userID string)
}

// AvatarStorage is the object storage used for avatars.
type AvatarStorage interface {
	PresignUpload(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	ObjectURL(ctx context.Context, key string, expires time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Timeouts bound store and cache calls.
type Timeouts struct {
	Query time.Duration
	Cache time.Duration
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
