package domain

import "time"

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

// PostVisibility controls who can read a published post.
type PostVisibility string

const (
	VisibilityPublic    PostVisibility = "public"
	VisibilityFollowers PostVisibility = "followers"
	VisibilityPrivate   PostVisibility = "private"
)

// Counter names an engagement counter on a post.
type Counter string

const (
	CounterLikes    Counter = "likes"
	CounterComments Counter = "comments"
	CounterShares   Counter = "shares"
	CounterViews    Counter = "views"
)

// Valid reports whether c is a known counter.
func (c Counter) Valid() bool {
	switch c {
	case CounterLikes, CounterComments, CounterShares, CounterViews:
		return true
	}
	return false
}

// Post is content owned by exactly one user. AuthorID never changes.
type Post struct {
	ID            string         `json:"id"`
	AuthorID      string         `json:"authorId"`
	Content       string         `json:"content"`
	Status        PostStatus     `json:"status"`
	Visibility    PostVisibility `json:"visibility"`
	Tags          []string       `json:"tags"`
	LikesCount    int64          `json:"likesCount"`
	CommentsCount int64          `json:"commentsCount"`
	SharesCount   int64          `json:"sharesCount"`
	ViewsCount    int64          `json:"viewsCount"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// VisibleTo reports whether viewer may read p, given whether the viewer
// follows the author.
func (p *Post) VisibleTo(viewer Viewer, followsAuthor bool) bool {
	if viewer.CanManage(p.AuthorID) {
		return true
	}
	if p.Status != PostStatusPublished {
		return false
	}
	switch p.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityFollowers:
		return followsAuthor
	default:
		return false
	}
}

// PostFilter narrows post listings.
type PostFilter struct {
	AuthorIDs []string
	Status    PostStatus       // empty: any
	Visible   []PostVisibility // empty: any
	Limit     int
	Offset    int
}

// PostStats aggregates a user's published posts.
type PostStats struct {
	TotalPosts     int64  `json:"totalPosts"`
	TotalLikes     int64  `json:"totalLikes"`
	TotalComments  int64  `json:"totalComments"`
	TotalShares    int64  `json:"totalShares"`
	TotalViews     int64  `json:"totalViews"`
	EngagementRate string `json:"engagementRate"`
}

// CreatePostRequest represents a new post.
type CreatePostRequest struct {
	Content    string         `json:"content" binding:"required,min=1,max=5000"`
	Status     PostStatus     `json:"status" binding:"omitempty,oneof=draft published"`
	Visibility PostVisibility `json:"visibility" binding:"omitempty,oneof=public followers private"`
	Tags       []string       `json:"tags" binding:"omitempty,max=10,dive,min=1,max=30"`
}

// UpdatePostRequest represents a partial post update.
type UpdatePostRequest struct {
	Content    *string         `json:"content" binding:"omitempty,min=1,max=5000"`
	Status     *PostStatus     `json:"status" binding:"omitempty,oneof=draft published archived"`
	Visibility *PostVisibility `json:"visibility" binding:"omitempty,oneof=public followers private"`
	Tags       []string        `json:"tags" binding:"omitempty,max=10,dive,min=1,max=30"`
}

// EngagementRequest increments one counter on a post.
type EngagementRequest struct {
	Type Counter `json:"type" binding:"required,oneof=likes comments shares views"`
}

// PostResponse is a post with its resolved author.
type PostResponse struct {
	Post
	Author UserSummary `json:"author"`
}

// PostPage is one page of posts.
type PostPage struct {
	Posts  []PostResponse `json:"posts"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
