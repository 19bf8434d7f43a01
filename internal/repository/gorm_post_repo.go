package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-social/internal/domain"
)

var counterColumns = map[domain.Counter]string{
	domain.CounterLikes:    "likes_count",
	domain.CounterComments: "comments_count",
	domain.CounterShares:   "shares_count",
	domain.CounterViews:    "views_count",
}

// GormPostRepository implements PostRepository using GORM.
type GormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository creates a new GORM-based post repository.
func NewGormPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

// Models returns the tables this repository needs migrated.
func (r *GormPostRepository) Models() []interface{} {
	return []interface{}{&domain.PostModel{}}
}

// Create creates a new post.
func (r *GormPostRepository) Create(ctx context.Context, post *domain.Post) error {
	post.ID = newPostID()
	model := domain.PostToModel(post)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	post.CreatedAt = model.CreatedAt
	post.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID retrieves a post by ID.
func (r *GormPostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	var model domain.PostModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// Update writes the editable fields of a post. Counters and author are left alone.
func (r *GormPostRepository) Update(ctx context.Context, post *domain.Post) error {
	model := domain.PostToModel(post)
	result := r.db.WithContext(ctx).Model(&domain.PostModel{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{
			"content":    model.Content,
			"status":     model.Status,
			"visibility": model.Visibility,
			"tags":       model.Tags,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}

	updated, err := r.GetByID(ctx, post.ID)
	if err != nil {
		return err
	}
	*post = *updated
	return nil
}

// Delete removes a post.
func (r *GormPostRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.PostModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

// List returns posts matching filter, newest first.
func (r *GormPostRepository) List(ctx context.Context, filter domain.PostFilter) ([]*domain.Post, error) {
	q := r.db.WithContext(ctx).Model(&domain.PostModel{})
	if len(filter.AuthorIDs) > 0 {
		q = q.Where("author_id IN ?", filter.AuthorIDs)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if len(filter.Visible) > 0 {
		visible := make([]string, 0, len(filter.Visible))
		for _, v := range filter.Visible {
			visible = append(visible, string(v))
		}
		q = q.Where("visibility IN ?", visible)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var models []domain.PostModel
	if err := q.Order("created_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	posts := make([]*domain.Post, 0, len(models))
	for i := range models {
		posts = append(posts, models[i].ToDomain())
	}
	return posts, nil
}

type statsRow struct {
	TotalPosts    int64
	TotalLikes    int64
	TotalComments int64
	TotalShares   int64
	TotalViews    int64
}

// Stats aggregates the author's published posts.
func (r *GormPostRepository) Stats(ctx context.Context, authorID string) (*domain.PostStats, error) {
	var row statsRow
	err := r.db.WithContext(ctx).Model(&domain.PostModel{}).
		Select(`COUNT(*) AS total_posts,
			COALESCE(SUM(likes_count), 0) AS total_likes,
			COALESCE(SUM(comments_count), 0) AS total_comments,
			COALESCE(SUM(shares_count), 0) AS total_shares,
			COALESCE(SUM(views_count), 0) AS total_views`).
		Where("author_id = ? AND status = ?", authorID, string(domain.PostStatusPublished)).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &domain.PostStats{
		TotalPosts:     row.TotalPosts,
		TotalLikes:     row.TotalLikes,
		TotalComments:  row.TotalComments,
		TotalShares:    row.TotalShares,
		TotalViews:     row.TotalViews,
		EngagementRate: domain.EngagementRate(row.TotalLikes, row.TotalComments, row.TotalShares, row.TotalViews),
	}, nil
}

// Increment adds delta to one counter in a single UPDATE.
func (r *GormPostRepository) Increment(ctx context.Context, id string, counter domain.Counter, delta int64) (*domain.Post, error) {
	column, ok := counterColumns[counter]
	if !ok {
		return nil, ErrInvalidCounter
	}

	result := r.db.WithContext(ctx).Model(&domain.PostModel{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrPostNotFound
	}
	return r.GetByID(ctx, id)
}

// CountByStatus counts posts per status.
func (r *GormPostRepository) CountByStatus(ctx context.Context) (map[domain.PostStatus]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&domain.PostModel{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[domain.PostStatus]int64, len(rows))
	for _, row := range rows {
		out[domain.PostStatus(row.Status)] = row.Total
	}
	return out, nil
}

var _ PostRepository = (*GormPostRepository)(nil)
