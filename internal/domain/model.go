package domain

import (
	"time"

	"github.com/weiawesome/wes-io-social/pkg/database"
)

// UserModel is the GORM model for the users table. Edge sets live in
// their own tables so membership changes are single-row writes.
type UserModel struct {
	ID            string    `gorm:"type:varchar(36);primaryKey"`
	Username      string    `gorm:"type:varchar(50);not null"`
	UsernameLower string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	Email         string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	FirstName     string    `gorm:"type:varchar(50)"`
	LastName      string    `gorm:"type:varchar(50)"`
	Bio           string    `gorm:"type:varchar(500)"`
	AvatarURL     string    `gorm:"type:varchar(1024)"`
	PasswordHash  string    `gorm:"type:varchar(255);not null"`
	Role          string    `gorm:"type:varchar(16);index;not null"`
	IsActive      bool      `gorm:"index;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// FollowerEdge records MemberID in followers(OwnerID).
type FollowerEdge struct {
	OwnerID   string    `gorm:"type:varchar(36);primaryKey"`
	MemberID  string    `gorm:"type:varchar(36);primaryKey;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for FollowerEdge.
func (FollowerEdge) TableName() string { return "user_followers" }

// FollowingEdge records MemberID in following(OwnerID).
type FollowingEdge struct {
	OwnerID   string    `gorm:"type:varchar(36);primaryKey"`
	MemberID  string    `gorm:"type:varchar(36);primaryKey;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for FollowingEdge.
func (FollowingEdge) TableName() string { return "user_following" }

// ToDomain converts UserModel to a User with the given edge sets.
func (m *UserModel) ToDomain(followers, following []string) *User {
	if followers == nil {
		followers = []string{}
	}
	if following == nil {
		following = []string{}
	}
	return &User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Bio:          m.Bio,
		AvatarURL:    m.AvatarURL,
		PasswordHash: m.PasswordHash,
		Role:         Role(m.Role),
		Followers:    followers,
		Following:    following,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// UserToModel converts a User to UserModel; edge sets are not part of the row.
func UserToModel(u *User) *UserModel {
	return &UserModel{
		ID:            u.ID,
		Username:      u.Username,
		UsernameLower: NormalizeUsername(u.Username),
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Bio:           u.Bio,
		AvatarURL:     u.AvatarURL,
		PasswordHash:  u.PasswordHash,
		Role:          string(u.Role),
		IsActive:      u.IsActive,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// PostModel is the GORM model for the posts table.
type PostModel struct {
	ID            string               `gorm:"type:varchar(36);primaryKey"`
	AuthorID      string               `gorm:"type:varchar(36);index:idx_posts_author_created,priority:1;not null"`
	Content       string               `gorm:"type:text;not null"`
	Status        string               `gorm:"type:varchar(16);index;not null"`
	Visibility    string               `gorm:"type:varchar(16);not null"`
	Tags          database.StringArray `gorm:"type:text"`
	LikesCount    int64                `gorm:"not null;default:0"`
	CommentsCount int64                `gorm:"not null;default:0"`
	SharesCount   int64                `gorm:"not null;default:0"`
	ViewsCount    int64                `gorm:"not null;default:0"`
	CreatedAt     time.Time            `gorm:"index:idx_posts_author_created,priority:2"`
	UpdatedAt     time.Time
}

// TableName specifies the table name for PostModel.
func (PostModel) TableName() string {
	return "posts"
}

// ToDomain converts PostModel to Post.
func (m *PostModel) ToDomain() *Post {
	tags := []string(m.Tags)
	if tags == nil {
		tags = []string{}
	}
	return &Post{
		ID:            m.ID,
		AuthorID:      m.AuthorID,
		Content:       m.Content,
		Status:        PostStatus(m.Status),
		Visibility:    PostVisibility(m.Visibility),
		Tags:          tags,
		LikesCount:    m.LikesCount,
		CommentsCount: m.CommentsCount,
		SharesCount:   m.SharesCount,
		ViewsCount:    m.ViewsCount,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// PostToModel converts Post to PostModel.
func PostToModel(p *Post) *PostModel {
	return &PostModel{
		ID:            p.ID,
		AuthorID:      p.AuthorID,
		Content:       p.Content,
		Status:        string(p.Status),
		Visibility:    string(p.Visibility),
		Tags:          database.StringArray(p.Tags),
		LikesCount:    p.LikesCount,
		CommentsCount: p.CommentsCount,
		SharesCount:   p.SharesCount,
		ViewsCount:    p.ViewsCount,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
