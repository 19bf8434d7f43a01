package domain

import (
	"strings"
	"time"
)

// Role is the authorization role carried by a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account and a node of the follow graph.
// Followers and Following hold user ids; their sizes are the public counts.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Bio          string    `json:"bio"`
	AvatarURL    string    `json:"avatarUrl"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Followers    []string  `json:"followers"`
	Following    []string  `json:"following"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DisplayName joins the name parts, falling back to the username.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Username
	}
	return name
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsFollowing reports whether u follows userID.
func (u *User) IsFollowing(userID string) bool {
	return contains(u.Following, userID)
}

// IsFollowedBy reports whether userID follows u.
func (u *User) IsFollowedBy(userID string) bool {
	return contains(u.Followers, userID)
}

// FollowersCount is the size of the followers set.
func (u *User) FollowersCount() int { return len(u.Followers) }

// FollowingCount is the size of the following set.
func (u *User) FollowingCount() int { return len(u.Following) }

// Connections returns followers ∪ following, the viewers whose view of u
// carries a non-"none" relationship status.
func (u *User) Connections() []string {
	ids := make([]string, 0, len(u.Followers)+len(u.Following))
	seen := make(map[string]struct{}, cap(ids))
	for _, set := range [][]string{u.Followers, u.Following} {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// NormalizeUsername returns the case-insensitive lookup form of a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func contains(set []string, id string) bool {
	if id == "" {
		return false
	}
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

// Viewer identifies who is looking at a resource. The zero value is a guest.
type Viewer struct {
	ID   string
	Role Role
}

// Guest reports whether the viewer is anonymous.
func (v Viewer) Guest() bool { return v.ID == "" }

// IsAdmin reports whether the viewer has the admin role.
func (v Viewer) IsAdmin() bool { return v.Role == RoleAdmin }

// Is reports whether the viewer is the given user.
func (v Viewer) Is(userID string) bool { return v.ID != "" && v.ID == userID }

// CanManage reports whether the viewer may modify resources owned by ownerID.
func (v Viewer) CanManage(ownerID string) bool { return v.Is(ownerID) || v.IsAdmin() }

// PublicUser is the user projection returned to clients.
// Email is empty unless the viewer is the user.
type PublicUser struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	DisplayName    string    `json:"displayName"`
	Bio            string    `json:"bio"`
	AvatarURL      string    `json:"avatarUrl,omitempty"`
	Role           Role      `json:"role"`
	IsActive       bool      `json:"isActive"`
	FollowersCount int       `json:"followersCount"`
	FollowingCount int       `json:"followingCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ToPublic projects u for viewer, redacting the email for everyone but u.
func (u *User) ToPublic(viewer Viewer) PublicUser {
	p := PublicUser{
		ID:             u.ID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		DisplayName:    u.DisplayName(),
		Bio:            u.Bio,
		AvatarURL:      u.AvatarURL,
		Role:           u.Role,
		IsActive:       u.IsActive,
		FollowersCount: u.FollowersCount(),
		FollowingCount: u.FollowingCount(),
		CreatedAt:      u.CreatedAt,
	}
	if viewer.Is(u.ID) {
		p.Email = u.Email
	}
	return p
}

const (
	UnavailableUsername    = "unavailable"
	UnavailableDisplayName = "Unavailable user"
)

// UserSummary is a compact reference to a user inside lists and posts.
type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Unavailable bool   `json:"unavailable,omitempty"`
}

// Summarize returns the summary for u, or the unavailable placeholder when u
// is nil or deactivated.
func Summarize(id string, u *User) UserSummary {
	if u == nil || !u.IsActive {
		return UserSummary{
			ID:          id,
			Username:    UnavailableUsername,
			DisplayName: UnavailableDisplayName,
			Unavailable: true,
		}
	}
	return UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName(),
		AvatarURL:   u.AvatarURL,
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,username"`
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	FirstName string `json:"firstName" binding:"max=50"`
	LastName  string `json:"lastName" binding:"max=50"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateUserRequest represents a partial profile update. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Username  *string `json:"username" binding:"omitempty,username"`
	FirstName *string `json:"firstName" binding:"omitempty,max=50"`
	LastName  *string `json:"lastName" binding:"omitempty,max=50"`
	Bio       *string `json:"bio" binding:"omitempty,max=500"`
}

// Empty reports whether the request changes nothing.
func (r *UpdateUserRequest) Empty() bool {
	return r.Username == nil && r.FirstName == nil && r.LastName == nil && r.Bio == nil
}

// AuthResponse is returned after a successful register or login.
type AuthResponse struct {
	User        PublicUser `json:"user"`
	AccessToken string     `json:"accessToken"`
	ExpiresAt   int64      `json:"expiresAt"`
}

// AvatarPresignRequest is the request body for presigning an avatar upload.
type AvatarPresignRequest struct {
	ContentType string `json:"contentType" binding:"required,oneof=image/png image/jpeg image/webp"`
}

// AvatarPresignResponse is returned when a presigned upload URL is generated.
type AvatarPresignResponse struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expiresIn"`
}

// UserFilter narrows user counts and listings.
type UserFilter struct {
	Active *bool
	Role   Role
	Query  string
}
