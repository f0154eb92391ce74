package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/Dias221467/bladder/internal/database"
	"github.com/Dias221467/bladder/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var miniProjection = bson.M{"_id": 1, "username": 1, "fullName": 1, "imgUrl": 1, "userColor": 1}

// UserRepository handles database operations related to users.
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection(database.UsersCollection),
	}
}

// CreateUser inserts a new user into the database.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.Friends == nil {
		user.Friends = []primitive.ObjectID{}
	}

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if err = translate(err); err == ErrDuplicate {
			return nil, err
		}
		logrus.WithError(err).Error("Failed to insert user into database")
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		logrus.Error("Failed to cast inserted ID to ObjectID")
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	user.ID = insertedID

	logrus.WithField("userID", user.ID.Hex()).Info("User inserted successfully")
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetUserByGoogleID retrieves a user by the subject of their Google account.
func (r *UserRepository) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"googleId": googleID})
}

// GetUserByID retrieves a user by their ID.
func (r *UserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) GetAllUsers(ctx context.Context) ([]models.User, error) {
	return r.find(ctx, bson.M{}, options.Find())
}

// GetUsersByIDs fetches user details for a list of ObjectIDs.
func (r *UserRepository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

// GetMiniByIDs fetches the mini projection for a list of ObjectIDs.
func (r *UserRepository) GetMiniByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.MiniUser, error) {
	if len(ids) == 0 {
		return []models.MiniUser{}, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(miniProjection))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users by IDs: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.MiniUser{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

// SearchByUsername matches usernames case-insensitively against the literal term.
func (r *UserRepository) SearchByUsername(ctx context.Context, term string, limit int64) ([]models.User, error) {
	filter := bson.M{"username": bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}}
	opts := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "username", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *UserRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	for cursor.Next(ctx) {
		var user models.User
		if err := cursor.Decode(&user); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		users = append(users, user)
	}
	return users, cursor.Err()
}

// UpdateUser applies a $set of the given fields.
func (r *UserRepository) UpdateUser(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"userID": id.Hex(),
			"error":  err,
		}).Error("Failed to update user")
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastActive records that the user made a request at.
func (r *UserRepository) TouchLastActive(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastActive": at}}); err != nil {
		return fmt.Errorf("failed to update last active: %w", err)
	}
	return nil
}

// DeleteUser deletes a user from the database.
func (r *UserRepository) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"userID": id.Hex(),
			"error":  err,
		}).Error("Failed to delete user")
		return fmt.Errorf("failed to delete user: %w", err)
	}

	logrus.WithField("userID", id.Hex()).Info("User deleted successfully")
	return nil
}

// Exists reports whether a user document with this ID is present.
func (r *UserRepository) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}

// GetFriendIDs returns the friends set of a user.
func (r *UserRepository) GetFriendIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	var user struct {
		Friends []primitive.ObjectID `bson:"friends"`
	}
	opts := options.FindOne().SetProjection(bson.M{"friends": 1})
	if err := r.collection.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return user.Friends, nil
}

// AddFriend adds friendID to userID's friends set. Repeating it is harmless.
func (r *UserRepository) AddFriend(ctx context.Context, userID, friendID primitive.ObjectID) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"friends": friendID}}, // avoid duplicates
	)
	if err != nil {
		return fmt.Errorf("failed to add friend: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveFriend pulls friendID from userID's friends set. A missing user is not an error.
func (r *UserRepository) RemoveFriend(ctx context.Context, userID, friendID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"friends": friendID}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove friend from user %s: %w", userID.Hex(), err)
	}
	return nil
}

// GetUsersWithFriends lists the id and friends set of every user with at least one friend.
func (r *UserRepository) GetUsersWithFriends(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1, "friends": 1})
	return r.find(ctx, bson.M{"friends.0": bson.M{"$exists": true}}, opts)
}

func (r *UserRepository) AddFcmToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"fcmTokens": token}},
	)
	if err != nil {
		return fmt.Errorf("failed to add fcm token: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) ClearFcmTokens(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"fcmTokens": []string{}}},
	)
	if err != nil {
		return fmt.Errorf("failed to clear fcm tokens: %w", err)
	}
	return nil
}

// PullFcmTokens removes the given tokens from the user's list.
func (r *UserRepository) PullFcmTokens(ctx context.Context, userID primitive.ObjectID, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"fcmTokens": bson.M{"$in": tokens}}},
	)
	if err != nil {
		return fmt.Errorf("failed to prune fcm tokens: %w", err)
	}
	return nil
}

func (r *UserRepository) GetFcmTokens(ctx context.Context, userID primitive.ObjectID) ([]string, error) {
	var user struct {
		FcmTokens []string `bson:"fcmTokens"`
	}
	opts := options.FindOne().SetProjection(bson.M{"fcmTokens": 1})
	if err := r.collection.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&user); err != nil {
		return nil, translate(err)
	}

	tokens := user.FcmTokens[:0]
	for _, t := range user.FcmTokens {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens, nil
}
