package pubsub

// Event types emitted by the social service.
const (
	EventUserFollowed    = "user.followed"
	EventUserUnfollowed  = "user.unfollowed"
	EventUserUpdated     = "user.updated"
	EventUserDeactivated = "user.deactivated"
	EventPostCreated     = "post.created"
	EventPostDeleted     = "post.deleted"
)

// FollowPayload is published after a completed follow or unfollow.
type FollowPayload struct {
	ActorID        string `json:"actor_id"`
	TargetID       string `json:"target_id"`
	FollowingCount int    `json:"following_count"`
	FollowersCount int    `json:"followers_count"`
}

// UserPayload is published after a user record changes.
type UserPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

// PostPayload is published after a post is created or removed.
type PostPayload struct {
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
}
