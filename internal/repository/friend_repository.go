package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/bladder/internal/database"
	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FriendRepository persists friend request records.
type FriendRepository struct {
	collection *mongo.Collection
}

func NewFriendRepository(db *mongo.Database) *FriendRepository {
	return &FriendRepository{
		collection: db.Collection(database.FriendRequestsCollection),
	}
}

// CreateRequest inserts req and assigns its ID. A second pending request for the same
// unordered pair is rejected by the unique partial index with ErrDuplicate.
func (r *FriendRepository) CreateRequest(ctx context.Context, req *models.FriendRequest) (*models.FriendRequest, error) {
	req.PairKey = models.PairKey(req.FromUserID, req.ToUserID)

	result, err := r.collection.InsertOne(ctx, req)
	if err != nil {
		if err = translate(err); err == ErrDuplicate {
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert friend request: %w", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	req.ID = insertedID

	logger.Log.WithField("requestID", req.ID.Hex()).Debug("Friend request inserted")
	return req, nil
}

func (r *FriendRepository) GetRequestByID(ctx context.Context, id primitive.ObjectID) (*models.FriendRequest, error) {
	var request models.FriendRequest
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request); err != nil {
		return nil, translate(err)
	}
	return &request, nil
}

// GetRequestBetween returns the newest request of any status between the two users.
func (r *FriendRepository) GetRequestBetween(ctx context.Context, userID1, userID2 primitive.ObjectID) (*models.FriendRequest, error) {
	return r.findOnePair(ctx, bson.M{"pairKey": models.PairKey(userID1, userID2)})
}

// GetPendingBetween returns the pending request between the two users, in either direction.
func (r *FriendRepository) GetPendingBetween(ctx context.Context, userID1, userID2 primitive.ObjectID) (*models.FriendRequest, error) {
	return r.findOnePair(ctx, bson.M{
		"pairKey": models.PairKey(userID1, userID2),
		"status":  models.StatusPending,
	})
}

func (r *FriendRepository) findOnePair(ctx context.Context, filter bson.M) (*models.FriendRequest, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var request models.FriendRequest
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&request); err != nil {
		return nil, translate(err)
	}
	return &request, nil
}

// GetRequestsByUser lists requests with the given status on the chosen side of userID, newest first.
func (r *FriendRepository) GetRequestsByUser(ctx context.Context, userID primitive.ObjectID, direction models.Direction, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	filter := bson.M{"status": status}
	switch direction {
	case models.DirectionReceived:
		filter["toUserId"] = userID
	case models.DirectionSent:
		filter["fromUserId"] = userID
	default:
		filter["$or"] = []bson.M{{"fromUserId": userID}, {"toUserId": userID}}
	}

	return r.find(ctx, filter)
}

// ClaimPending moves a pending request to status in one conditional write and returns the
// document as it was before the update. ErrNotFound means the request is gone or is no
// longer pending.
func (r *FriendRepository) ClaimPending(ctx context.Context, id primitive.ObjectID, status models.FriendRequestStatus, at time.Time) (*models.FriendRequest, error) {
	filter := bson.M{"_id": id, "status": models.StatusPending}
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before models.FriendRequest
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before); err != nil {
		return nil, translate(err)
	}
	return &before, nil
}

func (r *FriendRepository) DeleteRequest(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete friend request: %w", err)
	}
	return nil
}

// GetStaleResolved lists claimed requests that were not deleted before the cutoff.
func (r *FriendRepository) GetStaleResolved(ctx context.Context, cutoff time.Time) ([]models.FriendRequest, error) {
	return r.find(ctx, bson.M{
		"status":    bson.M{"$ne": models.StatusPending},
		"updatedAt": bson.M{"$lt": cutoff},
	})
}

func (r *FriendRepository) find(ctx context.Context, filter bson.M) ([]models.FriendRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find friend requests: %w", err)
	}
	defer cursor.Close(ctx)

	requests := []models.FriendRequest{}
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode friend requests: %w", err)
	}
	return requests, nil
}
