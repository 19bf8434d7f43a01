package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/weiawesome/wes-io-social/internal/domain"
)

const postsCollection = "posts"

type postDocument struct {
	ID            string    `bson:"_id"`
	AuthorID      string    `bson:"author_id"`
	Content       string    `bson:"content"`
	Status        string    `bson:"status"`
	Visibility    string    `bson:"visibility"`
	Tags          []string  `bson:"tags"`
	LikesCount    int64     `bson:"likes_count"`
	CommentsCount int64     `bson:"comments_count"`
	SharesCount   int64     `bson:"shares_count"`
	ViewsCount    int64     `bson:"views_count"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func (d *postDocument) toDomain() *domain.Post {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return &domain.Post{
		ID:            d.ID,
		AuthorID:      d.AuthorID,
		Content:       d.Content,
		Status:        domain.PostStatus(d.Status),
		Visibility:    domain.PostVisibility(d.Visibility),
		Tags:          tags,
		LikesCount:    d.LikesCount,
		CommentsCount: d.CommentsCount,
		SharesCount:   d.SharesCount,
		ViewsCount:    d.ViewsCount,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// MongoPostRepository implements PostRepository on a MongoDB collection.
type MongoPostRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoPostRepository creates a post repository on db.
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{
		coll: db.Collection(postsCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the author timeline index.
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	return err
}

// Create creates a new post.
func (r *MongoPostRepository) Create(ctx context.Context, post *domain.Post) error {
	post.ID = newPostID()
	now := r.now()
	post.CreatedAt, post.UpdatedAt = now, now
	if post.Tags == nil {
		post.Tags = []string{}
	}

	_, err := r.coll.InsertOne(ctx, postDocument{
		ID:         post.ID,
		AuthorID:   post.AuthorID,
		Content:    post.Content,
		Status:     string(post.Status),
		Visibility: string(post.Visibility),
		Tags:       post.Tags,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	return err
}

// GetByID retrieves a post by ID.
func (r *MongoPostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	var doc postDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// Update writes the editable fields of a post.
func (r *MongoPostRepository) Update(ctx context.Context, post *domain.Post) error {
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc postDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": post.ID}, bson.M{"$set": bson.M{
		"content":    post.Content,
		"status":     string(post.Status),
		"visibility": string(post.Visibility),
		"tags":       tags,
		"updated_at": r.now(),
	}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrPostNotFound
		}
		return err
	}
	*post = *doc.toDomain()
	return nil
}

// Delete removes a post.
func (r *MongoPostRepository) Delete(ctx context.Context, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

// List returns posts matching filter, newest first.
func (r *MongoPostRepository) List(ctx context.Context, filter domain.PostFilter) ([]*domain.Post, error) {
	q := bson.M{}
	if len(filter.AuthorIDs) > 0 {
		q["author_id"] = bson.M{"$in": filter.AuthorIDs}
	}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	if len(filter.Visible) > 0 {
		visible := make(bson.A, 0, len(filter.Visible))
		for _, v := range filter.Visible {
			visible = append(visible, string(v))
		}
		q["visibility"] = bson.M{"$in": visible}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	var docs []postDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	posts := make([]*domain.Post, 0, len(docs))
	for i := range docs {
		posts = append(posts, docs[i].toDomain())
	}
	return posts, nil
}

// Stats aggregates the author's published posts in one pipeline.
func (r *MongoPostRepository) Stats(ctx context.Context, authorID string) (*domain.PostStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"author_id": authorID, "status": string(domain.PostStatusPublished)}}},
		{{Key: "$group", Value: bson.M{
			"_id":            nil,
			"total_posts":    bson.M{"$sum": 1},
			"total_likes":    bson.M{"$sum": "$likes_count"},
			"total_comments": bson.M{"$sum": "$comments_count"},
			"total_shares":   bson.M{"$sum": "$shares_count"},
			"total_views":    bson.M{"$sum": "$views_count"},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		TotalPosts    int64 `bson:"total_posts"`
		TotalLikes    int64 `bson:"total_likes"`
		TotalComments int64 `bson:"total_comments"`
		TotalShares   int64 `bson:"total_shares"`
		TotalViews    int64 `bson:"total_views"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	stats := &domain.PostStats{EngagementRate: domain.EngagementRate(0, 0, 0, 0)}
	if len(rows) > 0 {
		row := rows[0]
		stats.TotalPosts = row.TotalPosts
		stats.TotalLikes = row.TotalLikes
		stats.TotalComments = row.TotalComments
		stats.TotalShares = row.TotalShares
		stats.TotalViews = row.TotalViews
		stats.EngagementRate = domain.EngagementRate(row.TotalLikes, row.TotalComments, row.TotalShares, row.TotalViews)
	}
	return stats, nil
}

// Increment adds delta to one counter with $inc.
func (r *MongoPostRepository) Increment(ctx context.Context, id string, counter domain.Counter, delta int64) (*domain.Post, error) {
	field, ok := counterColumns[counter]
	if !ok {
		return nil, ErrInvalidCounter
	}

	var doc postDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{field: delta}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// CountByStatus counts posts per status.
func (r *MongoPostRepository) CountByStatus(ctx context.Context) (map[domain.PostStatus]int64, error) {
	cursor, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "total": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Status string `bson:"_id"`
		Total  int64  `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	out := make(map[domain.PostStatus]int64, len(rows))
	for _, row := range rows {
		out[domain.PostStatus(row.Status)] = row.Total
	}
	return out, nil
}

var _ PostRepository = (*MongoPostRepository)(nil)
