package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-social/internal/cache"
	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/handler"
	"github.com/weiawesome/wes-io-social/internal/reconciler"
	"github.com/weiawesome/wes-io-social/internal/repository"
	"github.com/weiawesome/wes-io-social/internal/service"
	"github.com/weiawesome/wes-io-social/pkg/jwt"
	"github.com/weiawesome/wes-io-social/pkg/middleware"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
)

// followersDown fails writes to followers sets while set.
type followersDown struct {
	repository.UserRepository
	down atomic.Bool
}

func (f *followersDown) AddToSet(ctx context.Context, userID string, set repository.EdgeSet, memberID string) (int, error) {
	if f.down.Load() && set == repository.SetFollowers {
		return 0, errors.New("store unavailable")
	}
	return f.UserRepository.AddToSet(ctx, userID, set, memberID)
}

func (f *followersDown) RemoveFromSet(ctx context.Context, userID string, set repository.EdgeSet, memberID string) (int, error) {
	if f.down.Load() && set == repository.SetFollowers {
		return 0, errors.New("store unavailable")
	}
	return f.UserRepository.RemoveFromSet(ctx, userID, set, memberID)
}

type server struct {
	router *gin.Engine
	users  *followersDown
	tokens *jwt.Manager
}

func newServer(t *testing.T, limit *middleware.RateLimitConfig) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mc, err := cache.NewMemoryCache(256)
	require.NoError(t, err)
	tokens, err := jwt.NewManager("handler-secret", time.Hour, "wes-io-social")
	require.NoError(t, err)

	users := &followersDown{UserRepository: repository.NewMemoryUserRepository()}
	posts := repository.NewMemoryPostRepository()
	keys := cache.NewKeyBuilder("social")
	timeouts := service.Timeouts{Query: time.Second, Cache: 100 * time.Millisecond}
	inv := service.NewInvalidator(mc, keys, timeouts.Cache)
	queue := reconciler.NewMemoryQueue()
	rec := reconciler.New(queue, users, inv, reconciler.Config{})
	pub := pubsub.NopPublisher{}

	svc := handler.Services{
		Users:   service.NewUserService(users, tokens, nil, inv, pub, "events", timeouts),
		Follows: service.NewFollowService(users, inv, queue, pub, "events", timeouts),
		Profile: service.NewProfileService(users, posts, mc, keys, service.ProfileOptions{TTL: time.Minute, Timeouts: timeouts}),
		Posts:   service.NewPostService(posts, users, mc, keys, time.Minute, inv, pub, "events", timeouts),
		Admin:   service.NewAdminService(users, posts, tokens, inv, queue, rec, pub, "events", timeouts),
	}

	var limiter *middleware.RateLimiter
	if limit != nil {
		limiter = middleware.NewRateLimiter(*limit)
	}

	r := gin.New()
	handler.NewHandler(svc, middleware.NewAuthMiddleware(tokens), limiter).RegisterRoutes(r)
	return &server{router: r, users: users, tokens: tokens}
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode"`
	Error      *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.Equal(t, w.Code, env.StatusCode)
	return w.Code, env
}

type account struct {
	ID    string
	Token string
}

func (s *server) register(t *testing.T, username string) account {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, code)

	var resp domain.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return account{ID: resp.User.ID, Token: resp.AccessToken}
}

func (s *server) admin(t *testing.T) account {
	t.Helper()
	a := s.register(t, "root")
	token, _, err := s.tokens.GenerateToken(a.ID, "root@example.com", "root", []string{"user", "admin"})
	require.NoError(t, err)
	return account{ID: a.ID, Token: token}
}

func TestFollowAndProfileFlow(t *testing.T) {
	s := newServer(t, nil)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")

	code, _ := s.do(t, http.MethodPost, "/api/v1/users/"+bob.ID+"/follow", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code, env := s.do(t, http.MethodPost, "/api/v1/users/"+bob.ID+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)
	var result domain.FollowResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Equal(t, domain.FollowResult{CurrentUserFollowingCount: 1, TargetUserFollowersCount: 1}, result)

	code, env = s.do(t, http.MethodPost, "/api/v1/users/"+bob.ID+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusConflict, code)
	require.False(t, env.Success)

	code, _ = s.do(t, http.MethodPost, "/api/v1/users/"+alice.ID+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/users/missing/follow", alice.Token, nil)
	require.Equal(t, http.StatusNotFound, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/users/BOB/profile", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var profile domain.ProfileView
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	require.Equal(t, domain.RelationshipFollowing, profile.RelationshipStatus)
	require.Equal(t, 1, profile.User.FollowersCount)
	require.Empty(t, profile.User.Email)
	require.Equal(t, "0.00", profile.Stats.EngagementRate)

	code, env = s.do(t, http.MethodGet, "/api/v1/users/alice/profile", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	require.Equal(t, domain.RelationshipFollower, profile.RelationshipStatus)

	code, env = s.do(t, http.MethodGet, "/api/v1/users/bob/profile", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	require.Equal(t, domain.RelationshipSelf, profile.RelationshipStatus)
	require.Equal(t, "bob@example.com", profile.User.Email)

	code, env = s.do(t, http.MethodGet, "/api/v1/users/"+bob.ID+"/followers", "", nil)
	require.Equal(t, http.StatusOK, code)
	var page domain.UserPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Equal(t, 1, page.Total)
	require.Equal(t, "alice", page.Users[0].Username)

	code, env = s.do(t, http.MethodPost, "/api/v1/users/"+bob.ID+"/unfollow", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Equal(t, domain.FollowResult{}, result)

	code, env = s.do(t, http.MethodGet, "/api/v1/users/bob/profile", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	require.Equal(t, domain.RelationshipNone, profile.RelationshipStatus)
	require.Zero(t, profile.User.FollowersCount)

	code, _ = s.do(t, http.MethodPost, "/api/v1/users/"+bob.ID+"/unfollow", alice.Token, nil)
	require.Equal(t, http.StatusConflict, code)
}

func TestPartialUpdateResponseAndReconciliation(t *testing.T) {
	s := newServer(t, nil)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")
	root := s.admin(t)

	s.users.down.Store(true)
	code, env := s.do(t, http.MethodPost, "/api/v1/users/"+bob.ID+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusInternalServerError, code)
	require.False(t, env.Success)
	require.Equal(t, "PARTIAL_UPDATE", env.Error.Code)

	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, map[string]string{
		"operation":      service.OpFollow,
		"actorId":        alice.ID,
		"targetId":       bob.ID,
		"reconciliation": "queued",
	}, data)
	s.users.down.Store(false)

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/reconciliations", alice.Token, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/admin/reconciliations", root.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var pending struct {
		Repairs []domain.EdgeRepair `json:"repairs"`
		Count   int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	require.Equal(t, 1, pending.Count)
	require.Equal(t, domain.EdgeRepair{ActorID: alice.ID, TargetID: bob.ID}, pending.Repairs[0])

	code, env = s.do(t, http.MethodPost, "/api/v1/admin/reconciliations/run", root.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var report domain.ReconcileReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.Equal(t, 1, report.Repaired)

	code, env = s.do(t, http.MethodGet, "/api/v1/users/bob/profile", "", nil)
	require.Equal(t, http.StatusOK, code)
	var profile domain.ProfileView
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	require.Equal(t, 1, profile.User.FollowersCount)
}

func TestRequestValidation(t *testing.T) {
	s := newServer(t, nil)

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "no spaces!",
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	require.Contains(t, env.Error.Fields, "username")
	require.Contains(t, env.Error.Fields, "email")
	require.Contains(t, env.Error.Fields, "password")

	alice := s.register(t, "alice")
	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/posts", alice.Token, gin.H{"content": "hi", "visibility": "everyone"})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/users/"+alice.ID+"/followers?limit=1000", "", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/search/users", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestUserAndPostEndpoints(t *testing.T) {
	s := newServer(t, nil)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")

	code, env := s.do(t, http.MethodGet, "/api/v1/users/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var me domain.PublicUser
	require.NoError(t, json.Unmarshal(env.Data, &me))
	require.Equal(t, "alice@example.com", me.Email)

	code, _ = s.do(t, http.MethodPut, "/api/v1/users/"+alice.ID, bob.Token, gin.H{"bio": "hijacked"})
	require.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPut, "/api/v1/users/"+alice.ID, alice.Token, gin.H{"bio": "hello"})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodPost, "/api/v1/posts", alice.Token, gin.H{"content": "hello world"})
	require.Equal(t, http.StatusCreated, code)
	var post domain.PostResponse
	require.NoError(t, json.Unmarshal(env.Data, &post))
	require.Equal(t, "alice", post.Author.Username)

	code, _ = s.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/engagements", bob.Token, gin.H{"type": "likes"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/users/"+alice.ID+"/follow", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(t, http.MethodGet, "/api/v1/feed", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var feed domain.PostPage
	require.NoError(t, json.Unmarshal(env.Data, &feed))
	require.Len(t, feed.Posts, 1)
	require.Equal(t, int64(1), feed.Posts[0].LikesCount)

	code, env = s.do(t, http.MethodGet, "/api/v1/search/users?q=ALI", "", nil)
	require.Equal(t, http.StatusOK, code)
	var found domain.UserPage
	require.NoError(t, json.Unmarshal(env.Data, &found))
	require.Equal(t, 1, found.Total)

	code, _ = s.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID, bob.Token, nil)
	require.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID, alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/posts/"+post.ID, alice.Token, nil)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/users/me/avatar/presign", alice.Token, gin.H{"contentType": "image/png"})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodDelete, "/api/v1/users/"+alice.ID, alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/users/me", alice.Token, nil)
	require.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/users/alice/profile", bob.Token, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestAdminEndpoints(t *testing.T) {
	s := newServer(t, nil)
	alice := s.register(t, "alice")
	root := s.admin(t)

	code, env := s.do(t, http.MethodGet, "/api/v1/admin/dashboard", root.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var stats domain.DashboardStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.Equal(t, int64(2), stats.TotalUsers)

	code, _ = s.do(t, http.MethodPut, "/api/v1/admin/users/"+alice.ID+"/status", root.Token, gin.H{})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPut, "/api/v1/admin/users/"+alice.ID+"/status", root.Token, gin.H{"active": false})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/users/me", alice.Token, nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPut, "/api/v1/admin/users/"+alice.ID+"/role", root.Token, gin.H{"role": "owner"})
	require.Equal(t, http.StatusBadRequest, code)
	code, env = s.do(t, http.MethodPut, "/api/v1/admin/users/"+alice.ID+"/role", root.Token, gin.H{"role": "admin"})
	require.Equal(t, http.StatusOK, code)
	var user domain.PublicUser
	require.NoError(t, json.Unmarshal(env.Data, &user))
	require.Equal(t, domain.RoleAdmin, user.Role)
}

func TestFollowRateLimit(t *testing.T) {
	s := newServer(t, &middleware.RateLimitConfig{RPS: 0.01, Burst: 1})
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")

	code, _ := s.do(t, http.MethodPost, "/api/v1/users/"+bob.ID+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/users/"+bob.ID+"/unfollow", alice.Token, nil)
	require.Equal(t, http.StatusTooManyRequests, code)
}
