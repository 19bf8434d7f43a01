package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-social/internal/audit"
	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/repository"
	"github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	avatarUploadExpiry = 15 * time.Minute
	avatarURLExpiry    = 7 * 24 * time.Hour
)

// userServiceImpl implements UserService.
type userServiceImpl struct {
	users       repository.UserRepository
	tokens      TokenManager
	storage     AvatarStorage
	invalidator Invalidator
	events      eventSink
	timeouts    Timeouts
}

// NewUserService creates a new user service. storage may be nil, in which
// case avatar uploads are unavailable.
func NewUserService(
	users repository.UserRepository,
	tokens TokenManager,
	storage AvatarStorage,
	invalidator Invalidator,
	publisher pubsub.Publisher,
	topic string,
	timeouts Timeouts,
) UserService {
	return &userServiceImpl{
		users:       users,
		tokens:      tokens,
		storage:     storage,
		invalidator: invalidator,
		events:      newEventSink(publisher, topic),
		timeouts:    timeouts,
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Register registers a new user.
func (s *userServiceImpl) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	l := log.Ctx(ctx)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		l.Error().Err(err).Msg("failed to hash password")
		return nil, err
	}

	user := &domain.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hashedPassword),
		Role:         domain.RoleUser,
		IsActive:     true,
	}

	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	if err := s.users.Create(qctx, user); err != nil {
		err = mapRepoError(err)
		if !errors.Is(err, ErrConflict) {
			l.Error().Err(err).Msg("failed to create user")
		}
		return nil, err
	}

	resp, err := s.issue(user)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to generate token after register")
		return nil, err
	}

	audit.Log(ctx, audit.ActionRegister, user.ID, "user registered")
	return resp, nil
}

// Login authenticates a user by email and password.
func (s *userServiceImpl) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()

	user, err := s.users.GetByEmail(qctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			audit.LogWithDetail(ctx, audit.ActionLoginFailed, "", req.Email, "login failed: unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		audit.Log(ctx, audit.ActionLoginFailed, user.ID, "login failed: wrong password")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		audit.Log(ctx, audit.ActionLoginFailed, user.ID, "login failed: account deactivated")
		return nil, ErrForbidden
	}

	resp, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.ActionLogin, user.ID, "user logged in")
	return resp, nil
}

func (s *userServiceImpl) issue(user *domain.User) (*domain.AuthResponse, error) {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Email, user.Username, []string{string(user.Role)})
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{
		User:        user.ToPublic(domain.Viewer{ID: user.ID, Role: user.Role}),
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// Me returns the caller's own record, email included.
func (s *userServiceImpl) Me(ctx context.Context, userID string) (*domain.PublicUser, error) {
	user, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	public := user.ToPublic(domain.Viewer{ID: user.ID, Role: user.Role})
	return &public, nil
}

func (s *userServiceImpl) get(ctx context.Context, userID string) (*domain.User, error) {
	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	user, err := s.users.GetByID(qctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return user, nil
}

func (s *userServiceImpl) save(ctx context.Context, user *domain.User) error {
	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	return mapRepoError(s.users.Update(qctx, user))
}

// UpdateUser applies a partial profile update for the user or an admin.
func (s *userServiceImpl) UpdateUser(ctx context.Context, viewer domain.Viewer, userID string, req *domain.UpdateUserRequest) (*domain.PublicUser, error) {
	if !viewer.CanManage(userID) {
		return nil, ErrForbidden
	}
	if req.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	user, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive && !viewer.IsAdmin() {
		return nil, ErrUserNotFound
	}
	previous := *user

	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}

	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	// Keys are derived from the username, so a rename leaves entries under the old one.
	s.invalidator.InvalidateUser(ctx, &previous, viewer.ID)
	if previous.Username != user.Username {
		s.invalidator.InvalidateUser(ctx, user, viewer.ID)
	}

	s.events.publish(ctx, pubsub.EventUserUpdated, user.ID, pubsub.UserPayload{
		UserID:   user.ID,
		Username: user.Username,
		IsActive: user.IsActive,
	})
	audit.LogTarget(ctx, audit.ActionUpdateProfile, viewer.ID, user.ID, "profile updated")

	public := user.ToPublic(viewer)
	return &public, nil
}

// Deactivate soft-deletes the user. Edges are kept; references to the user
// render as unavailable.
func (s *userServiceImpl) Deactivate(ctx context.Context, viewer domain.Viewer, userID string) error {
	if !viewer.CanManage(userID) {
		return ErrForbidden
	}
	user, err := s.get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}

	user.IsActive = false
	if err := s.save(ctx, user); err != nil {
		return err
	}
	s.tokens.RevokeUserTokens(user.ID)
	// Connected viewers may hold a cached view; each must now see NotFound.
	s.invalidator.InvalidateUser(ctx, user, append(user.Connections(), viewer.ID)...)

	s.events.publish(ctx, pubsub.EventUserDeactivated, user.ID, pubsub.UserPayload{
		UserID:   user.ID,
		Username: user.Username,
	})
	audit.LogTarget(ctx, audit.ActionDeactivate, viewer.ID, user.ID, "user deactivated")
	return nil
}

// ListFollowers lists followers(userID) as summaries.
func (s *userServiceImpl) ListFollowers(ctx context.Context, userID string, limit, offset int) (*domain.UserPage, error) {
	return s.listEdges(ctx, userID, repository.SetFollowers, limit, offset)
}

// ListFollowing lists following(userID) as summaries.
func (s *userServiceImpl) ListFollowing(ctx context.Context, userID string, limit, offset int) (*domain.UserPage, error) {
	return s.listEdges(ctx, userID, repository.SetFollowing, limit, offset)
}

func (s *userServiceImpl) listEdges(ctx context.Context, userID string, set repository.EdgeSet, limit, offset int) (*domain.UserPage, error) {
	limit, offset = normalizePage(limit, offset)

	user, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserNotFound
	}

	ids := user.Followers
	if set == repository.SetFollowing {
		ids = user.Following
	}
	page := &domain.UserPage{Users: []domain.UserSummary{}, Total: len(ids), Limit: limit, Offset: offset}
	if offset >= len(ids) {
		return page, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	ids = ids[offset:end]

	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	found, err := s.users.GetByIDs(qctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		page.Users = append(page.Users, domain.Summarize(id, found[id]))
	}
	return page, nil
}

// Search finds active users by username or name.
func (s *userServiceImpl) Search(ctx context.Context, query string, limit, offset int) (*domain.UserPage, error) {
	limit, offset = normalizePage(limit, offset)
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}

	active := true
	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	users, total, err := s.users.Search(qctx, domain.UserFilter{Active: &active, Query: query}, limit, offset)
	if err != nil {
		return nil, err
	}

	page := &domain.UserPage{Users: make([]domain.UserSummary, 0, len(users)), Total: total, Limit: limit, Offset: offset}
	for _, u := range users {
		page.Users = append(page.Users, domain.Summarize(u.ID, u))
	}
	return page, nil
}

// GenerateAvatarUploadURL presigns a direct upload for a new avatar.
func (s *userServiceImpl) GenerateAvatarUploadURL(ctx context.Context, userID, contentType string) (*domain.AvatarPresignResponse, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("%w: avatar storage is not configured", ErrValidation)
	}
	if _, err := s.get(ctx, userID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/raw/%s/%s%s", userID, uuid.New().String(), avatarExtension(contentType))
	url, err := s.storage.PresignUpload(ctx, key, contentType, avatarUploadExpiry)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to presign avatar upload")
		return nil, err
	}

	return &domain.AvatarPresignResponse{
		UploadURL: url,
		Key:       key,
		ExpiresIn: int(avatarUploadExpiry.Seconds()),
	}, nil
}

func avatarExtension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// HandleAvatarProcessed stores the processed avatar URL on the user.
func (s *userServiceImpl) HandleAvatarProcessed(ctx context.Context, userID, key, rawKey string) error {
	if s.storage == nil {
		return fmt.Errorf("%w: avatar storage is not configured", ErrValidation)
	}
	l := log.Ctx(ctx)

	user, err := s.get(ctx, userID)
	if err != nil {
		return err
	}

	url, err := s.storage.ObjectURL(ctx, key, avatarURLExpiry)
	if err != nil {
		return fmt.Errorf("failed to resolve avatar url: %w", err)
	}
	user.AvatarURL = url
	if err := s.save(ctx, user); err != nil {
		return err
	}
	s.invalidator.InvalidateUser(ctx, user)

	if rawKey != "" && rawKey != key {
		if err := s.storage.Delete(ctx, rawKey); err != nil {
			l.Warn().Err(err).Str(log.FieldUserID, userID).Str("key", rawKey).Msg("failed to delete raw avatar")
		}
	}

	audit.LogWithDetail(ctx, audit.ActionAvatarUpdated, userID, key, "avatar updated")
	return nil
}

var _ UserService = (*userServiceImpl)(nil)
