package repository

import (
	"context"
	"fmt"

	"github.com/Dias221467/bladder/internal/database"
	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AreaMarkerRepository handles database operations related to map area markers
type AreaMarkerRepository struct {
	collection *mongo.Collection
}

func NewAreaMarkerRepository(db *mongo.Database) *AreaMarkerRepository {
	return &AreaMarkerRepository{
		collection: db.Collection(database.AreaMarkersCollection),
	}
}

func (r *AreaMarkerRepository) CreateMarker(ctx context.Context, marker *models.AreaMarker) (*models.AreaMarker, error) {
	result, err := r.collection.InsertOne(ctx, marker)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert area marker")
		return nil, fmt.Errorf("failed to insert area marker: %w", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	marker.ID = insertedID

	logger.Log.WithField("marker_id", marker.ID.Hex()).Info("Area marker created successfully")
	return marker, nil
}

func (r *AreaMarkerRepository) GetMarkerByID(ctx context.Context, id primitive.ObjectID) (*models.AreaMarker, error) {
	var marker models.AreaMarker
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&marker); err != nil {
		return nil, translate(err)
	}
	return &marker, nil
}

func (r *AreaMarkerRepository) GetAllMarkers(ctx context.Context) ([]models.AreaMarker, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		logger.Log.WithError(err).Error("Failed to fetch area markers")
		return nil, fmt.Errorf("failed to fetch area markers: %w", err)
	}
	defer cursor.Close(ctx)

	markers := []models.AreaMarker{}
	if err := cursor.All(ctx, &markers); err != nil {
		return nil, fmt.Errorf("failed to decode area markers: %w", err)
	}
	return markers, nil
}

// UpdateMarker sets the given fields and returns the stored document after the update.
func (r *AreaMarkerRepository) UpdateMarker(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.AreaMarker, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var marker models.AreaMarker
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&marker)
	if err != nil {
		logger.Log.WithError(err).WithField("marker_id", id.Hex()).Warn("Failed to update area marker")
		return nil, translate(err)
	}
	return &marker, nil
}

func (r *AreaMarkerRepository) DeleteMarker(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		logger.Log.WithError(err).WithField("marker_id", id.Hex()).Error("Failed to delete area marker")
		return fmt.Errorf("failed to delete area marker: %w", err)
	}
	return nil
}
