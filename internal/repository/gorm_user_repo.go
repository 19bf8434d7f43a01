package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-social/internal/domain"
)

// likeEscaper makes search terms literal inside a LIKE pattern. The escape
// character is '!' because MySQL string literals already consume backslashes.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// GormUserRepository implements UserRepository using GORM. Each edge set
// is its own table keyed by (owner_id, member_id), so a membership change
// is a single idempotent row write.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Models returns the tables this repository needs migrated.
func (r *GormUserRepository) Models() []interface{} {
	return []interface{}{&domain.UserModel{}, &domain.FollowerEdge{}, &domain.FollowingEdge{}}
}

// Create creates a new user.
func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	user.ID = newUserID()
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	model := domain.UserToModel(user)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return r.handleError(result.Error)
	}

	user.Followers = []string{}
	user.Following = []string{}
	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID retrieves a user by ID.
func (r *GormUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByUsername retrieves a user by username, ignoring case.
func (r *GormUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.first(ctx, "username_lower = ?", domain.NormalizeUsername(username))
}

// GetByEmail retrieves a user by email.
func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *GormUserRepository) first(ctx context.Context, query string, arg interface{}) (*domain.User, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, query, arg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}

	followers, following, err := r.loadEdges(ctx, []string{model.ID})
	if err != nil {
		return nil, err
	}
	return model.ToDomain(followers[model.ID], following[model.ID]), nil
}

// GetByIDs retrieves the users that exist among ids.
func (r *GormUserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var models []domain.UserModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return out, nil
	}

	found := make([]string, 0, len(models))
	for _, m := range models {
		found = append(found, m.ID)
	}
	followers, following, err := r.loadEdges(ctx, found)
	if err != nil {
		return nil, err
	}
	for i := range models {
		m := &models[i]
		out[m.ID] = m.ToDomain(followers[m.ID], following[m.ID])
	}
	return out, nil
}

type edgeRow struct {
	OwnerID  string
	MemberID string
}

func (r *GormUserRepository) loadEdges(ctx context.Context, ownerIDs []string) (map[string][]string, map[string][]string, error) {
	load := func(table string) (map[string][]string, error) {
		var rows []edgeRow
		err := r.db.WithContext(ctx).Table(table).
			Select("owner_id, member_id").
			Where("owner_id IN ?", ownerIDs).
			Order("created_at ASC, member_id ASC").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		sets := make(map[string][]string, len(ownerIDs))
		for _, row := range rows {
			sets[row.OwnerID] = append(sets[row.OwnerID], row.MemberID)
		}
		return sets, nil
	}

	followers, err := load(domain.FollowerEdge{}.TableName())
	if err != nil {
		return nil, nil, err
	}
	following, err := load(domain.FollowingEdge{}.TableName())
	if err != nil {
		return nil, nil, err
	}
	return followers, following, nil
}

// Update writes the non-edge fields of a user.
func (r *GormUserRepository) Update(ctx context.Context, user *domain.User) error {
	model := domain.UserToModel(user)
	result := r.db.WithContext(ctx).Model(&domain.UserModel{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"username":       model.Username,
			"username_lower": model.UsernameLower,
			"email":          model.Email,
			"first_name":     model.FirstName,
			"last_name":      model.LastName,
			"bio":            model.Bio,
			"avatar_url":     model.AvatarURL,
			"password_hash":  model.PasswordHash,
			"role":           model.Role,
			"is_active":      model.IsActive,
		})
	if result.Error != nil {
		return r.handleError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	var updated domain.UserModel
	if err := r.db.WithContext(ctx).Select("updated_at").First(&updated, "id = ?", user.ID).Error; err == nil {
		user.UpdatedAt = updated.UpdatedAt
	}
	return nil
}

func edgeTable(set EdgeSet) (string, error) {
	switch set {
	case SetFollowers:
		return domain.FollowerEdge{}.TableName(), nil
	case SetFollowing:
		return domain.FollowingEdge{}.TableName(), nil
	}
	return "", ErrInvalidEdgeSet
}

// AddToSet inserts memberID into the user's set and returns the set size.
func (r *GormUserRepository) AddToSet(ctx context.Context, userID string, set EdgeSet, memberID string) (int, error) {
	return r.mutateSet(ctx, userID, set, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(edgeModel(set, userID, memberID)).Error
	})
}

// RemoveFromSet deletes memberID from the user's set and returns the set size.
func (r *GormUserRepository) RemoveFromSet(ctx context.Context, userID string, set EdgeSet, memberID string) (int, error) {
	return r.mutateSet(ctx, userID, set, func(tx *gorm.DB) error {
		return tx.Where("owner_id = ? AND member_id = ?", userID, memberID).
			Delete(edgeModel(set, "", "")).Error
	})
}

func edgeModel(set EdgeSet, ownerID, memberID string) interface{} {
	if set == SetFollowers {
		return &domain.FollowerEdge{OwnerID: ownerID, MemberID: memberID}
	}
	return &domain.FollowingEdge{OwnerID: ownerID, MemberID: memberID}
}

func (r *GormUserRepository) mutateSet(ctx context.Context, userID string, set EdgeSet, write func(tx *gorm.DB) error) (int, error) {
	table, err := edgeTable(set)
	if err != nil {
		return 0, err
	}

	var size int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&domain.UserModel{}).Where("id = ?", userID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrUserNotFound
		}
		if err := write(tx); err != nil {
			return err
		}
		return tx.Table(table).Where("owner_id = ?", userID).Count(&size).Error
	})
	if err != nil {
		return 0, err
	}
	return int(size), nil
}

func (r *GormUserRepository) filtered(ctx context.Context, filter domain.UserFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&domain.UserModel{})
	if filter.Active != nil {
		q = q.Where("is_active = ?", *filter.Active)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", string(filter.Role))
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Query)); term != "" {
		like := "%" + likeEscaper.Replace(term) + "%"
		q = q.Where("username_lower LIKE ? ESCAPE '!' OR LOWER(first_name) LIKE ? ESCAPE '!' OR LOWER(last_name) LIKE ? ESCAPE '!'", like, like, like)
	}
	return q
}

// Count counts users matching filter.
func (r *GormUserRepository) Count(ctx context.Context, filter domain.UserFilter) (int64, error) {
	var n int64
	if err := r.filtered(ctx, filter).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Search lists users matching filter ordered by username.
func (r *GormUserRepository) Search(ctx context.Context, filter domain.UserFilter, limit, offset int) ([]*domain.User, int, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []domain.UserModel
	if err := r.filtered(ctx, filter).
		Order("username_lower ASC").
		Limit(limit).Offset(offset).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	users := make([]*domain.User, 0, len(models))
	if len(models) == 0 {
		return users, int(total), nil
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	followers, following, err := r.loadEdges(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range models {
		m := &models[i]
		users = append(users, m.ToDomain(followers[m.ID], following[m.ID]))
	}
	return users, int(total), nil
}

// handleError converts database-specific errors to domain errors.
func (r *GormUserRepository) handleError(err error) error {
	errStr := err.Error()

	// PostgreSQL and SQLite unique constraint violation
	if strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "UNIQUE constraint") ||
		// MySQL
		strings.Contains(errStr, "Duplicate entry") {
		if strings.Contains(errStr, "email") {
			return ErrEmailExists
		}
		if strings.Contains(errStr, "username") {
			return ErrUsernameExists
		}
	}
	return err
}

var _ UserRepository = (*GormUserRepository)(nil)
