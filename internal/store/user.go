package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/projecthub/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

// publicUserProjection drops the password hash from read-only listings.
var publicUserProjection = bson.M{"password": 0}

// UserRepository handles persistence for users.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// ExistsByEmailOrUsername reports whether any user holds email or username.
func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": email},
		bson.M{"username": username},
	}}
	return r.exists(ctx, filter)
}

// EmailTaken reports whether a user other than except holds email.
func (r *UserRepository) EmailTaken(ctx context.Context, email string, except primitive.ObjectID) (bool, error) {
	return r.exists(ctx, exceptFilter(bson.M{"email": email}, except))
}

// UsernameTaken reports whether a user other than except holds username.
func (r *UserRepository) UsernameTaken(ctx context.Context, username string, except primitive.ObjectID) (bool, error) {
	return r.exists(ctx, exceptFilter(bson.M{"username": username}, except))
}

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	return r.find(ctx, bson.M{}, options.Find().SetProjection(publicUserProjection))
}

// Search matches query as a case-insensitive literal substring of the
// username or the email.
func (r *UserRepository) Search(ctx context.Context, query string) ([]types.User, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"username": pattern},
		bson.M{"email": pattern},
	}}
	return r.find(ctx, filter, options.Find().SetProjection(publicUserProjection))
}

// GetMany returns the users that exist among ids. Missing ids are ignored.
func (r *UserRepository) GetMany(ctx context.Context, ids []primitive.ObjectID) ([]types.User, error) {
	if len(ids) == 0 {
		return []types.User{}, nil
	}
	filter := bson.M{"_id": bson.M{"$in": ids}}
	return r.find(ctx, filter, options.Find().SetProjection(publicUserProjection))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.ID = primitive.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, ErrDuplicate
		}
		return types.User{}, err
	}
	return user, nil
}

// Update persists the username and email of user.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now().UTC()

	update := bson.M{"$set": bson.M{
		"username":  user.Username,
		"email":     user.Email,
		"updatedAt": user.UpdatedAt,
	}}
	result, err := r.coll.UpdateByID(ctx, user.ID, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, ErrDuplicate
		}
		return types.User{}, err
	}
	if result.MatchedCount == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	update := bson.M{"$set": bson.M{
		"password":  passwordHash,
		"updatedAt": time.Now().UTC(),
	}}
	result, err := r.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (types.User, error) {
	var user types.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]types.User, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := make([]types.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	count, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func exceptFilter(filter bson.M, except primitive.ObjectID) bson.M {
	if !except.IsZero() {
		filter["_id"] = bson.M{"$ne": except}
	}
	return filter
}
