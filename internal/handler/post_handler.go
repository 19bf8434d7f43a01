package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/pkg/response"
)

// CreatePost creates a post authored by the caller.
func (h *Handler) CreatePost(c *gin.Context) {
	var req domain.CreatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := h.svc.Posts.Create(c.Request.Context(), viewerOf(c), &req)
	if err != nil {
		fail(c, err, "create post")
		return
	}
	response.Created(c, "post created", post)
}

// GetPost returns one post.
func (h *Handler) GetPost(c *gin.Context) {
	post, err := h.svc.Posts.Get(c.Request.Context(), viewerOf(c), c.Param("id"))
	if err != nil {
		fail(c, err, "get post")
		return
	}
	response.Success(c, "post retrieved", post)
}

// UpdatePost edits a post.
func (h *Handler) UpdatePost(c *gin.Context) {
	var req domain.UpdatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := h.svc.Posts.Update(c.Request.Context(), viewerOf(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err, "update post")
		return
	}
	response.Success(c, "post updated", post)
}

// DeletePost removes a post.
func (h *Handler) DeletePost(c *gin.Context) {
	if err := h.svc.Posts.Delete(c.Request.Context(), viewerOf(c), c.Param("id")); err != nil {
		fail(c, err, "delete post")
		return
	}
	response.Success(c, "post deleted", nil)
}

// EngagePost increments an engagement counter.
func (h *Handler) EngagePost(c *gin.Context) {
	var req domain.EngagementRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := h.svc.Posts.Engage(c.Request.Context(), viewerOf(c), c.Param("id"), req.Type)
	if err != nil {
		fail(c, err, "engage with post")
		return
	}
	response.Success(c, "engagement recorded", post)
}

// ListUserPosts lists a user's posts visible to the caller.
func (h *Handler) ListUserPosts(c *gin.Context) {
	var q pageQuery
	if !bindQuery(c, &q) {
		return
	}
	page, err := h.svc.Posts.ListByAuthor(c.Request.Context(), viewerOf(c), c.Param("id"), q.Limit, q.Offset)
	if err != nil {
		fail(c, err, "list posts")
		return
	}
	response.Success(c, "posts retrieved", page)
}

// Feed returns posts from the users the caller follows.
func (h *Handler) Feed(c *gin.Context) {
	var q pageQuery
	if !bindQuery(c, &q) {
		return
	}
	page, err := h.svc.Posts.Feed(c.Request.Context(), viewerOf(c), q.Limit, q.Offset)
	if err != nil {
		fail(c, err, "load feed")
		return
	}
	response.Success(c, "feed retrieved", page)
}
