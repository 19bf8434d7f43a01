package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-social/internal/domain"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrPostNotFound   = errors.New("post not found")
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
	ErrInvalidEdgeSet = errors.New("invalid edge set")
	ErrInvalidCounter = errors.New("invalid counter")
)

// EdgeSet names one of the two id sets stored on a user.
type EdgeSet string

const (
	SetFollowers EdgeSet = "followers"
	SetFollowing EdgeSet = "following"
)

// Valid reports whether s is a known edge set.
func (s EdgeSet) Valid() bool {
	return s == SetFollowers || s == SetFollowing
}

// UserRepository persists users and their edge sets.
//
// AddToSet and RemoveFromSet are the only writers of edge sets. Both are
// idempotent single-document operations that return the resulting set size:
// adding a present member or removing an absent one changes nothing.
// Update never touches edge sets.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByIDs returns the users found, keyed by id. Missing ids are omitted.
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	Update(ctx context.Context, user *domain.User) error

	AddToSet(ctx context.Context, userID string, set EdgeSet, memberID string) (int, error)
	RemoveFromSet(ctx context.Context, userID string, set EdgeSet, memberID string) (int, error)

	Count(ctx context.Context, filter domain.UserFilter) (int64, error)
	Search(ctx context.Context, filter domain.UserFilter, limit, offset int) ([]*domain.User, int, error)
}

// PostRepository persists posts.
type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	Update(ctx context.Context, post *domain.Post) error
	Delete(ctx context.Context, id string) error
	// List returns posts matching filter, newest first.
	List(ctx context.Context, filter domain.PostFilter) ([]*domain.Post, error)
	// Stats aggregates the author's published posts.
	Stats(ctx context.Context, authorID string) (*domain.PostStats, error)
	// Increment atomically adds delta to one counter and returns the post.
	Increment(ctx context.Context, id string, counter domain.Counter, delta int64) (*domain.Post, error)
	CountByStatus(ctx context.Context) (map[domain.PostStatus]int64, error)
}
