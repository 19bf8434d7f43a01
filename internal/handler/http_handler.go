package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/service"
	"github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/middleware"
	"github.com/weiawesome/wes-io-social/pkg/response"
)

// Services groups the service layer behind the HTTP API.
type Services struct {
	Users   service.UserService
	Follows service.FollowService
	Profile service.ProfileService
	Posts   service.PostService
	Admin   service.AdminService
}

// Handler handles HTTP requests for the social API.
type Handler struct {
	svc            Services
	authMiddleware *middleware.AuthMiddleware
	followLimiter  *middleware.RateLimiter
}

// NewHandler creates a new HTTP handler. followLimiter may be nil.
func NewHandler(svc Services, authMiddleware *middleware.AuthMiddleware, followLimiter *middleware.RateLimiter) *Handler {
	registerValidators()
	return &Handler{
		svc:            svc,
		authMiddleware: authMiddleware,
		followLimiter:  followLimiter,
	}
}

type pageQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

type searchQuery struct {
	pageQuery
	Q string `form:"q" binding:"required,min=1,max=100"`
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	requireAuth := h.authMiddleware.RequireAuth()
	optionalAuth := h.authMiddleware.OptionalAuth()
	limited := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		chain := []gin.HandlerFunc{requireAuth}
		if h.followLimiter != nil {
			chain = append(chain, h.followLimiter.Middleware())
		}
		return append(chain, handler)
	}

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
		}

		users := api.Group("/users")
		{
			users.GET("/me", requireAuth, h.GetMe)
			users.POST("/me/avatar/presign", requireAuth, h.PresignAvatar)

			users.POST("/:id/follow", limited(h.Follow)...)
			users.POST("/:id/unfollow", limited(h.Unfollow)...)
			users.GET("/:id/profile", optionalAuth, h.GetProfile)
			users.PUT("/:id", requireAuth, h.UpdateUser)
			users.DELETE("/:id", requireAuth, h.DeactivateUser)
			users.GET("/:id/followers", h.ListFollowers)
			users.GET("/:id/following", h.ListFollowing)
			users.GET("/:id/posts", optionalAuth, h.ListUserPosts)
		}

		posts := api.Group("/posts")
		{
			posts.POST("", requireAuth, h.CreatePost)
			posts.GET("/:id", optionalAuth, h.GetPost)
			posts.PUT("/:id", requireAuth, h.UpdatePost)
			posts.DELETE("/:id", requireAuth, h.DeletePost)
			posts.POST("/:id/engagements", requireAuth, h.EngagePost)
		}

		api.GET("/feed", requireAuth, h.Feed)
		api.GET("/search/users", h.SearchUsers)

		admin := api.Group("/admin", requireAuth, middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.GET("/dashboard", h.Dashboard)
			admin.PUT("/users/:id/status", h.SetUserStatus)
			admin.PUT("/users/:id/role", h.SetUserRole)
			admin.GET("/reconciliations", h.PendingReconciliations)
			admin.POST("/reconciliations/run", h.RunReconciliation)
		}
	}
}

// viewerOf builds the caller's identity from the auth middleware keys.
// Guests have an empty ID.
func viewerOf(c *gin.Context) domain.Viewer {
	v := domain.Viewer{ID: middleware.GetUserID(c), Role: domain.RoleUser}
	if middleware.HasRole(c, middleware.RoleAdmin) {
		v.Role = domain.RoleAdmin
	}
	return v
}

// fail maps a service error onto the response envelope.
func fail(c *gin.Context, err error, action string) {
	var partial *service.PartialGraphUpdateError
	switch {
	case errors.As(err, &partial):
		response.ErrorWithData(c, http.StatusInternalServerError, "PARTIAL_UPDATE",
			partial.Operation+" partially applied; the graph will be reconciled",
			gin.H{
				"operation":      partial.Operation,
				"actorId":        partial.ActorID,
				"targetId":       partial.TargetID,
				"reconciliation": "queued",
			})
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrSelfReference):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, "invalid email or password")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, "you are not allowed to "+action)
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, "user not found")
	case errors.Is(err, service.ErrPostNotFound):
		response.NotFound(c, "post not found")
	case errors.Is(err, service.ErrConflict):
		response.Conflict(c, err.Error())
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str(log.FieldPath, c.FullPath()).Msg(action + " failed")
		response.InternalError(c, "failed to "+action)
	}
}

// Register handles user registration.
func (h *Handler) Register(c *gin.Context) {
	var req domain.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Users.Register(c.Request.Context(), &req)
	if err != nil {
		fail(c, err, "register user")
		return
	}
	response.Created(c, "user registered", result)
}

// Login handles user login.
func (h *Handler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Users.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, err, "login")
		return
	}
	response.Success(c, "login successful", result)
}

// GetMe returns current user info.
func (h *Handler) GetMe(c *gin.Context) {
	user, err := h.svc.Users.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "get user")
		return
	}
	response.Success(c, "user retrieved", user)
}

// PresignAvatar issues a presigned avatar upload URL.
func (h *Handler) PresignAvatar(c *gin.Context) {
	var req domain.AvatarPresignRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Users.GenerateAvatarUploadURL(c.Request.Context(), middleware.GetUserID(c), req.ContentType)
	if err != nil {
		fail(c, err, "presign avatar upload")
		return
	}
	response.Success(c, "upload url generated", result)
}

// Follow makes the caller follow the user in the path.
func (h *Handler) Follow(c *gin.Context) {
	result, err := h.svc.Follows.Follow(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		fail(c, err, "follow user")
		return
	}
	response.Success(c, "user followed successfully", result)
}

// Unfollow removes the caller's follow of the user in the path.
func (h *Handler) Unfollow(c *gin.Context) {
	result, err := h.svc.Follows.Unfollow(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		fail(c, err, "unfollow user")
		return
	}
	response.Success(c, "user unfollowed successfully", result)
}

// GetProfile returns the profile of the username in the path.
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.svc.Profile.GetProfile(c.Request.Context(), c.Param("id"), viewerOf(c))
	if err != nil {
		fail(c, err, "get profile")
		return
	}
	response.Success(c, "profile retrieved", profile)
}

// UpdateUser applies a partial update to a user.
func (h *Handler) UpdateUser(c *gin.Context) {
	var req domain.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.svc.Users.UpdateUser(c.Request.Context(), viewerOf(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err, "update user")
		return
	}
	response.Success(c, "user updated", user)
}

// DeactivateUser soft-deletes a user.
func (h *Handler) DeactivateUser(c *gin.Context) {
	if err := h.svc.Users.Deactivate(c.Request.Context(), viewerOf(c), c.Param("id")); err != nil {
		fail(c, err, "deactivate user")
		return
	}
	response.Success(c, "user deactivated", nil)
}

// ListFollowers lists the followers of a user.
func (h *Handler) ListFollowers(c *gin.Context) {
	var q pageQuery
	if !bindQuery(c, &q) {
		return
	}
	page, err := h.svc.Users.ListFollowers(c.Request.Context(), c.Param("id"), q.Limit, q.Offset)
	if err != nil {
		fail(c, err, "list followers")
		return
	}
	response.Success(c, "followers retrieved", page)
}

// ListFollowing lists the users a user follows.
func (h *Handler) ListFollowing(c *gin.Context) {
	var q pageQuery
	if !bindQuery(c, &q) {
		return
	}
	page, err := h.svc.Users.ListFollowing(c.Request.Context(), c.Param("id"), q.Limit, q.Offset)
	if err != nil {
		fail(c, err, "list following")
		return
	}
	response.Success(c, "following retrieved", page)
}

// SearchUsers finds users by username or name.
func (h *Handler) SearchUsers(c *gin.Context) {
	var q searchQuery
	if !bindQuery(c, &q) {
		return
	}
	page, err := h.svc.Users.Search(c.Request.Context(), q.Q, q.Limit, q.Offset)
	if err != nil {
		fail(c, err, "search users")
		return
	}
	response.Success(c, "users retrieved", page)
}
