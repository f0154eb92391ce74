package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/bladder/internal/config"
	"github.com/Dias221467/bladder/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared by the repositories.
const (
	UsersCollection          = "user"
	FriendRequestsCollection = "friendRequest"
	AreaMarkersCollection    = "areaMarker"
)

// ConnectDB opens the client, pings the server and returns the configured database.
func ConnectDB(cfg *config.Config) (*mongo.Database, error) {
	if cfg.MongoURL == "" {
		return nil, fmt.Errorf("database URL not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Log.WithField("db", cfg.DBName).Info("Connected to MongoDB")
	return client.Database(cfg.DBName), nil
}

// EnsureIndexes creates the indexes the repositories rely on. Creating an index that
// already exists with the same definition is a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	requests := db.Collection(FriendRequestsCollection)
	_, err := requests.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// At most one pending request per unordered pair of users.
			Keys: bson.D{{Key: "pairKey", Value: 1}},
			Options: options.Index().
				SetName("uniq_pending_pair").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "pending"}),
		},
		{Keys: bson.D{{Key: "toUserId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "fromUserId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create friend request indexes: %w", err)
	}

	users := db.Collection(UsersCollection)
	_, err = users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("uniq_email").SetUnique(true)},
		{
			Keys: bson.D{{Key: "googleId", Value: 1}},
			Options: options.Index().
				SetName("uniq_google_id").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"googleId": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	return nil
}
