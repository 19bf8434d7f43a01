package repository_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/repository"
	"github.com/weiawesome/wes-io-social/pkg/database"
)

type stores struct {
	users repository.UserRepository
	posts repository.PostRepository
}

func backends(t *testing.T) map[string]func(t *testing.T) stores {
	t.Helper()
	return map[string]func(t *testing.T) stores{
		"memory": func(t *testing.T) stores {
			return stores{
				users: repository.NewMemoryUserRepository(),
				posts: repository.NewMemoryPostRepository(),
			}
		},
		"sqlite": func(t *testing.T) stores {
			db, err := database.New(&database.Config{
				Driver:       "sqlite",
				FilePath:     filepath.Join(t.TempDir(), "social.db"),
				MaxOpenConns: 1,
				LogLevel:     "silent",
			})
			require.NoError(t, err)
			t.Cleanup(func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			})

			users := repository.NewGormUserRepository(db)
			posts := repository.NewGormPostRepository(db)
			require.NoError(t, database.AutoMigrate(db, append(users.Models(), posts.Models()...)...))
			return stores{users: users, posts: posts}
		},
	}
}

func newUser() *domain.User {
	return &domain.User{
		Username:     strings.ReplaceAll(gofakeit.Username(), " ", "") + gofakeit.DigitN(4),
		Email:        strings.ToLower(gofakeit.Email()),
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
		PasswordHash: "hash",
		Role:         domain.RoleUser,
		IsActive:     true,
	}
}

func TestUserRepository(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			alice := newUser()
			require.NoError(t, s.users.Create(ctx, alice))
			require.NotEmpty(t, alice.ID)

			t.Run("lookup", func(t *testing.T) {
				got, err := s.users.GetByID(ctx, alice.ID)
				require.NoError(t, err)
				require.Equal(t, alice.Username, got.Username)
				require.Empty(t, got.Followers)
				require.Empty(t, got.Following)

				got, err = s.users.GetByUsername(ctx, strings.ToUpper(alice.Username))
				require.NoError(t, err)
				require.Equal(t, alice.ID, got.ID)

				got, err = s.users.GetByEmail(ctx, alice.Email)
				require.NoError(t, err)
				require.Equal(t, alice.ID, got.ID)

				_, err = s.users.GetByID(ctx, "missing")
				require.ErrorIs(t, err, repository.ErrUserNotFound)
			})

			t.Run("uniqueness", func(t *testing.T) {
				dup := newUser()
				dup.Email = alice.Email
				require.ErrorIs(t, s.users.Create(ctx, dup), repository.ErrEmailExists)

				dup = newUser()
				dup.Username = strings.ToUpper(alice.Username)
				require.ErrorIs(t, s.users.Create(ctx, dup), repository.ErrUsernameExists)
			})

			t.Run("edge sets", func(t *testing.T) {
				bob := newUser()
				require.NoError(t, s.users.Create(ctx, bob))

				n, err := s.users.AddToSet(ctx, alice.ID, repository.SetFollowing, bob.ID)
				require.NoError(t, err)
				require.Equal(t, 1, n)

				n, err = s.users.AddToSet(ctx, alice.ID, repository.SetFollowing, bob.ID)
				require.NoError(t, err)
				require.Equal(t, 1, n)

				n, err = s.users.AddToSet(ctx, bob.ID, repository.SetFollowers, alice.ID)
				require.NoError(t, err)
				require.Equal(t, 1, n)

				got, err := s.users.GetByID(ctx, alice.ID)
				require.NoError(t, err)
				require.Equal(t, []string{bob.ID}, got.Following)
				require.True(t, got.IsFollowing(bob.ID))

				byID, err := s.users.GetByIDs(ctx, []string{alice.ID, bob.ID, "missing"})
				require.NoError(t, err)
				require.Len(t, byID, 2)
				require.Equal(t, []string{alice.ID}, byID[bob.ID].Followers)

				n, err = s.users.RemoveFromSet(ctx, alice.ID, repository.SetFollowing, bob.ID)
				require.NoError(t, err)
				require.Equal(t, 0, n)

				n, err = s.users.RemoveFromSet(ctx, alice.ID, repository.SetFollowing, bob.ID)
				require.NoError(t, err)
				require.Equal(t, 0, n)

				_, err = s.users.AddToSet(ctx, "missing", repository.SetFollowers, bob.ID)
				require.ErrorIs(t, err, repository.ErrUserNotFound)

				_, err = s.users.AddToSet(ctx, alice.ID, repository.EdgeSet("friends"), bob.ID)
				require.ErrorIs(t, err, repository.ErrInvalidEdgeSet)
			})

			t.Run("update leaves edges alone", func(t *testing.T) {
				carol := newUser()
				require.NoError(t, s.users.Create(ctx, carol))
				_, err := s.users.AddToSet(ctx, carol.ID, repository.SetFollowers, alice.ID)
				require.NoError(t, err)

				stale, err := s.users.GetByID(ctx, carol.ID)
				require.NoError(t, err)
				stale.Followers = nil
				stale.Bio = "updated"
				require.NoError(t, s.users.Update(ctx, stale))

				got, err := s.users.GetByID(ctx, carol.ID)
				require.NoError(t, err)
				require.Equal(t, "updated", got.Bio)
				require.Equal(t, []string{alice.ID}, got.Followers)

				ghost := newUser()
				ghost.ID = "missing"
				require.ErrorIs(t, s.users.Update(ctx, ghost), repository.ErrUserNotFound)
			})

			t.Run("search and count", func(t *testing.T) {
				admin := newUser()
				admin.Username = "zz_admin_searchable"
				admin.Role = domain.RoleAdmin
				require.NoError(t, s.users.Create(ctx, admin))

				inactive := newUser()
				inactive.Username = "zz_gone_searchable"
				inactive.IsActive = false
				require.NoError(t, s.users.Create(ctx, inactive))

				users, total, err := s.users.Search(ctx, domain.UserFilter{Query: "SEARCHABLE"}, 10, 0)
				require.NoError(t, err)
				require.Equal(t, 2, total)
				require.Equal(t, admin.ID, users[0].ID)

				active := true
				users, total, err = s.users.Search(ctx, domain.UserFilter{Query: "searchable", Active: &active}, 10, 0)
				require.NoError(t, err)
				require.Equal(t, 1, total)
				require.Equal(t, admin.ID, users[0].ID)

				n, err := s.users.Count(ctx, domain.UserFilter{Role: domain.RoleAdmin})
				require.NoError(t, err)
				require.Equal(t, int64(1), n)

				users, total, err = s.users.Search(ctx, domain.UserFilter{Query: "searchable"}, 1, 1)
				require.NoError(t, err)
				require.Equal(t, 2, total)
				require.Len(t, users, 1)
				require.Equal(t, inactive.ID, users[0].ID)

				// Wildcard characters in the term match literally.
				_, total, err = s.users.Search(ctx, domain.UserFilter{Query: "zz%searchable"}, 10, 0)
				require.NoError(t, err)
				require.Zero(t, total)
				users, total, err = s.users.Search(ctx, domain.UserFilter{Query: "zz_gone"}, 10, 0)
				require.NoError(t, err)
				require.Equal(t, 1, total)
				require.Equal(t, inactive.ID, users[0].ID)
				_, total, err = s.users.Search(ctx, domain.UserFilter{Query: "zz_gone_searchable!"}, 10, 0)
				require.NoError(t, err)
				require.Zero(t, total)
			})
		})
	}
}

func TestPostRepository(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			author := newUser()
			require.NoError(t, s.users.Create(ctx, author))

			mk := func(status domain.PostStatus, vis domain.PostVisibility) *domain.Post {
				p := &domain.Post{
					AuthorID:   author.ID,
					Content:    gofakeit.Sentence(8),
					Status:     status,
					Visibility: vis,
					Tags:       []string{"go"},
				}
				require.NoError(t, s.posts.Create(ctx, p))
				return p
			}

			pub := mk(domain.PostStatusPublished, domain.VisibilityPublic)
			followersOnly := mk(domain.PostStatusPublished, domain.VisibilityFollowers)
			draft := mk(domain.PostStatusDraft, domain.VisibilityPublic)

			_, err := ulid.ParseStrict(pub.ID)
			require.NoError(t, err)
			require.Less(t, pub.ID, draft.ID)

			t.Run("stats over published posts", func(t *testing.T) {
				stats, err := s.posts.Stats(ctx, author.ID)
				require.NoError(t, err)
				require.Equal(t, int64(2), stats.TotalPosts)
				require.Equal(t, "0.00", stats.EngagementRate)

				for i := 0; i < 4; i++ {
					_, err = s.posts.Increment(ctx, pub.ID, domain.CounterViews, 1)
					require.NoError(t, err)
				}
				_, err = s.posts.Increment(ctx, pub.ID, domain.CounterLikes, 1)
				require.NoError(t, err)
				got, err := s.posts.Increment(ctx, followersOnly.ID, domain.CounterShares, 1)
				require.NoError(t, err)
				require.Equal(t, int64(1), got.SharesCount)
				_, err = s.posts.Increment(ctx, draft.ID, domain.CounterLikes, 10)
				require.NoError(t, err)

				stats, err = s.posts.Stats(ctx, author.ID)
				require.NoError(t, err)
				require.Equal(t, int64(1), stats.TotalLikes)
				require.Equal(t, int64(1), stats.TotalShares)
				require.Equal(t, int64(4), stats.TotalViews)
				require.Equal(t, "0.50", stats.EngagementRate)

				_, err = s.posts.Increment(ctx, "missing", domain.CounterLikes, 1)
				require.ErrorIs(t, err, repository.ErrPostNotFound)
				_, err = s.posts.Increment(ctx, pub.ID, domain.Counter("hugs"), 1)
				require.ErrorIs(t, err, repository.ErrInvalidCounter)
			})

			t.Run("list newest first", func(t *testing.T) {
				posts, err := s.posts.List(ctx, domain.PostFilter{AuthorIDs: []string{author.ID}})
				require.NoError(t, err)
				require.Len(t, posts, 3)
				for i := 1; i < len(posts); i++ {
					require.False(t, posts[i].CreatedAt.After(posts[i-1].CreatedAt))
				}

				posts, err = s.posts.List(ctx, domain.PostFilter{
					AuthorIDs: []string{author.ID},
					Status:    domain.PostStatusPublished,
					Visible:   []domain.PostVisibility{domain.VisibilityPublic},
				})
				require.NoError(t, err)
				require.Len(t, posts, 1)
				require.Equal(t, pub.ID, posts[0].ID)

				posts, err = s.posts.List(ctx, domain.PostFilter{AuthorIDs: []string{author.ID}, Limit: 2})
				require.NoError(t, err)
				require.Len(t, posts, 2)
			})

			t.Run("update and delete", func(t *testing.T) {
				draft.Status = domain.PostStatusArchived
				draft.Content = "edited"
				require.NoError(t, s.posts.Update(ctx, draft))
				require.Equal(t, int64(10), draft.LikesCount)

				got, err := s.posts.GetByID(ctx, draft.ID)
				require.NoError(t, err)
				require.Equal(t, "edited", got.Content)
				require.Equal(t, domain.PostStatusArchived, got.Status)
				require.Equal(t, []string{"go"}, got.Tags)

				counts, err := s.posts.CountByStatus(ctx)
				require.NoError(t, err)
				require.Equal(t, int64(2), counts[domain.PostStatusPublished])
				require.Equal(t, int64(1), counts[domain.PostStatusArchived])

				require.NoError(t, s.posts.Delete(ctx, draft.ID))
				_, err = s.posts.GetByID(ctx, draft.ID)
				require.ErrorIs(t, err, repository.ErrPostNotFound)
				require.ErrorIs(t, s.posts.Delete(ctx, draft.ID), repository.ErrPostNotFound)
			})
		})
	}
}
