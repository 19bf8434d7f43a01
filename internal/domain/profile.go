package domain

import "fmt"

// RelationshipStatus is the viewer's relation to a profile subject.
type RelationshipStatus string

const (
	RelationshipSelf      RelationshipStatus = "self"
	RelationshipMutual    RelationshipStatus = "mutual"
	RelationshipFollowing RelationshipStatus = "following"
	RelationshipFollower  RelationshipStatus = "follower"
	RelationshipNone      RelationshipStatus = "none"
)

// DeriveRelationship computes the viewer's relation to subject from the
// subject's own edge sets.
func DeriveRelationship(subject *User, viewer Viewer) RelationshipStatus {
	if viewer.Guest() {
		return RelationshipNone
	}
	if viewer.Is(subject.ID) {
		return RelationshipSelf
	}

	viewerFollows := subject.IsFollowedBy(viewer.ID)
	subjectFollows := subject.IsFollowing(viewer.ID)
	switch {
	case viewerFollows && subjectFollows:
		return RelationshipMutual
	case viewerFollows:
		return RelationshipFollowing
	case subjectFollows:
		return RelationshipFollower
	default:
		return RelationshipNone
	}
}

// FollowsSubject reports whether the status implies the viewer follows the subject.
func (s RelationshipStatus) FollowsSubject() bool {
	return s == RelationshipFollowing || s == RelationshipMutual
}

// EngagementRate formats (likes+comments+shares)/views with two decimals.
// Zero views yields "0.00".
func EngagementRate(likes, comments, shares, views int64) string {
	if views <= 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(likes+comments+shares)/float64(views))
}

// ProfileView is the derived, cacheable profile projection.
type ProfileView struct {
	User               PublicUser         `json:"user"`
	Stats              PostStats          `json:"stats"`
	RelationshipStatus RelationshipStatus `json:"relationshipStatus"`
	RecentPosts        []Post             `json:"recentPosts"`
}

// NewProfileView assembles the view of subject for viewer.
func NewProfileView(subject *User, viewer Viewer, stats PostStats, recent []Post) *ProfileView {
	if recent == nil {
		recent = []Post{}
	}
	return &ProfileView{
		User:               subject.ToPublic(viewer),
		Stats:              stats,
		RelationshipStatus: DeriveRelationship(subject, viewer),
		RecentPosts:        recent,
	}
}

// FollowResult reports the counts after a follow or unfollow.
type FollowResult struct {
	CurrentUserFollowingCount int `json:"currentUserFollowingCount"`
	TargetUserFollowersCount  int `json:"targetUserFollowersCount"`
}

// UserPage is one page of user summaries.
type UserPage struct {
	Users  []UserSummary `json:"users"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	TotalUsers     int64                `json:"totalUsers"`
	ActiveUsers    int64                `json:"activeUsers"`
	AdminUsers     int64                `json:"adminUsers"`
	PostsByStatus  map[PostStatus]int64 `json:"postsByStatus"`
	PendingRepairs int64                `json:"pendingRepairs"`
}
