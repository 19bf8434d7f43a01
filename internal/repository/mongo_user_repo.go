package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/weiawesome/wes-io-social/internal/domain"
)

const usersCollection = "users"

type userDocument struct {
	ID            string    `bson:"_id"`
	Username      string    `bson:"username"`
	UsernameLower string    `bson:"username_lower"`
	Email         string    `bson:"email"`
	FirstName     string    `bson:"first_name"`
	LastName      string    `bson:"last_name"`
	Bio           string    `bson:"bio"`
	AvatarURL     string    `bson:"avatar_url"`
	PasswordHash  string    `bson:"password_hash"`
	Role          string    `bson:"role"`
	Followers     []string  `bson:"followers"`
	Following     []string  `bson:"following"`
	IsActive      bool      `bson:"is_active"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func (d *userDocument) toDomain() *domain.User {
	followers, following := d.Followers, d.Following
	if followers == nil {
		followers = []string{}
	}
	if following == nil {
		following = []string{}
	}
	return &domain.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Bio:          d.Bio,
		AvatarURL:    d.AvatarURL,
		PasswordHash: d.PasswordHash,
		Role:         domain.Role(d.Role),
		Followers:    followers,
		Following:    following,
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MongoUserRepository implements UserRepository on a MongoDB collection.
// Edge sets are arrays on the user document and change only through
// $addToSet and $pull.
type MongoUserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoUserRepository creates a user repository on db.
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{
		coll: db.Collection(usersCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique username and email indexes.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username_lower", Value: 1}}, Options: options.Index().SetUnique(true).SetName("username_lower_unique")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
		{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "role", Value: 1}}},
	})
	return err
}

// Create creates a new user.
func (r *MongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	user.ID = newUserID()
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	now := r.now()
	user.CreatedAt, user.UpdatedAt = now, now
	user.Followers, user.Following = []string{}, []string{}

	doc := userDocument{
		ID:            user.ID,
		Username:      user.Username,
		UsernameLower: domain.NormalizeUsername(user.Username),
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Bio:           user.Bio,
		AvatarURL:     user.AvatarURL,
		PasswordHash:  user.PasswordHash,
		Role:          string(user.Role),
		Followers:     user.Followers,
		Following:     user.Following,
		IsActive:      user.IsActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return r.handleError(err)
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// GetByID retrieves a user by ID.
func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByUsername retrieves a user by username, ignoring case.
func (r *MongoUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username_lower": domain.NormalizeUsername(username)})
}

// GetByEmail retrieves a user by email.
func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

// GetByIDs retrieves the users that exist among ids.
func (r *MongoUserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	for i := range docs {
		out[docs[i].ID] = docs[i].toDomain()
	}
	return out, nil
}

// Update writes the non-edge fields of a user.
func (r *MongoUserRepository) Update(ctx context.Context, user *domain.User) error {
	now := r.now()
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"username":       user.Username,
		"username_lower": domain.NormalizeUsername(user.Username),
		"email":          user.Email,
		"first_name":     user.FirstName,
		"last_name":      user.LastName,
		"bio":            user.Bio,
		"avatar_url":     user.AvatarURL,
		"password_hash":  user.PasswordHash,
		"role":           string(user.Role),
		"is_active":      user.IsActive,
		"updated_at":     now,
	}})
	if err != nil {
		return r.handleError(err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	user.UpdatedAt = now
	return nil
}

// AddToSet adds memberID with $addToSet and returns the set size.
func (r *MongoUserRepository) AddToSet(ctx context.Context, userID string, set EdgeSet, memberID string) (int, error) {
	return r.mutateSet(ctx, userID, set, "$addToSet", memberID)
}

// RemoveFromSet removes memberID with $pull and returns the set size.
func (r *MongoUserRepository) RemoveFromSet(ctx context.Context, userID string, set EdgeSet, memberID string) (int, error) {
	return r.mutateSet(ctx, userID, set, "$pull", memberID)
}

func (r *MongoUserRepository) mutateSet(ctx context.Context, userID string, set EdgeSet, op, memberID string) (int, error) {
	if !set.Valid() {
		return 0, ErrInvalidEdgeSet
	}
	field := string(set)

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{field: 1})

	var doc userDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{op: bson.M{field: memberID}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	if set == SetFollowers {
		return len(doc.Followers), nil
	}
	return len(doc.Following), nil
}

func userQuery(filter domain.UserFilter) bson.M {
	q := bson.M{}
	if filter.Active != nil {
		q["is_active"] = *filter.Active
	}
	if filter.Role != "" {
		q["role"] = string(filter.Role)
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(strings.ToLower(term)), "$options": "i"}
		q["$or"] = bson.A{
			bson.M{"username_lower": pattern},
			bson.M{"first_name": pattern},
			bson.M{"last_name": pattern},
		}
	}
	return q
}

// Count counts users matching filter.
func (r *MongoUserRepository) Count(ctx context.Context, filter domain.UserFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, userQuery(filter))
}

// Search lists users matching filter ordered by username.
func (r *MongoUserRepository) Search(ctx context.Context, filter domain.UserFilter, limit, offset int) ([]*domain.User, int, error) {
	q := userQuery(filter)
	total, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "username_lower", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}

	users := make([]*domain.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toDomain())
	}
	return users, int(total), nil
}

func (r *MongoUserRepository) handleError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		errStr := err.Error()
		if strings.Contains(errStr, "email") {
			return ErrEmailExists
		}
		if strings.Contains(errStr, "username") {
			return ErrUsernameExists
		}
	}
	return err
}

var _ UserRepository = (*MongoUserRepository)(nil)
