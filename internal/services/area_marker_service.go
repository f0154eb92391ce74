package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/internal/repository"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Socket events for marker changes.
const (
	EventMarkerAdded   = "area-marker-added"
	EventMarkerUpdated = "area-marker-updated"
	EventMarkerRemoved = "area-marker-removed"
)

// AreaMarkerStore is the marker persistence used by AreaMarkerService.
type AreaMarkerStore interface {
	CreateMarker(ctx context.Context, marker *models.AreaMarker) (*models.AreaMarker, error)
	GetMarkerByID(ctx context.Context, id primitive.ObjectID) (*models.AreaMarker, error)
	GetAllMarkers(ctx context.Context) ([]models.AreaMarker, error)
	UpdateMarker(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.AreaMarker, error)
	DeleteMarker(ctx context.Context, id primitive.ObjectID) error
}

// Broadcaster sends an event to every socket in room, or everyone when room is empty,
// except the sockets of excludeUserID.
type Broadcaster interface {
	Broadcast(eventType string, data interface{}, room string, excludeUserID string)
}

type AreaMarkerService struct {
	repo   AreaMarkerStore
	socket Broadcaster
}

func NewAreaMarkerService(repo AreaMarkerStore, socket Broadcaster) *AreaMarkerService {
	return &AreaMarkerService{repo: repo, socket: socket}
}

func (s *AreaMarkerService) Query(ctx context.Context) ([]models.AreaMarker, error) {
	markers, err := s.repo.GetAllMarkers(ctx)
	if err != nil {
		return nil, storeErr("list markers", err)
	}
	for i := range markers {
		markers[i].Position = markers[i].Position.Normalized()
	}
	return markers, nil
}

func (s *AreaMarkerService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AreaMarker, error) {
	marker, err := s.repo.GetMarkerByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr("get marker", err)
	}
	marker.Position = marker.Position.Normalized()
	return marker, nil
}

// Add stores a new marker created by callerID.
func (s *AreaMarkerService) Add(ctx context.Context, callerID string, marker models.AreaMarker) (*models.AreaMarker, error) {
	if err := validatePosition(marker.Position); err != nil {
		return nil, err
	}
	if marker.Radius == 0 {
		marker.Radius = models.DefaultMarkerRadius
	}
	if err := validateRadius(marker.Radius); err != nil {
		return nil, err
	}

	marker.ID = primitive.NilObjectID
	marker.Position = marker.Position.Normalized()
	marker.CreatedAt = time.Now()
	marker.CreatedBy = callerID

	created, err := s.repo.CreateMarker(ctx, &marker)
	if err != nil {
		return nil, storeErr("insert marker", err)
	}

	s.broadcast(EventMarkerAdded, created, callerID)
	return created, nil
}

// Update applies the non-nil fields of upd. Only the creator or an admin may update.
func (s *AreaMarkerService) Update(ctx context.Context, callerID string, isAdmin bool, id primitive.ObjectID, upd models.AreaMarkerUpdate) (*models.AreaMarker, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEdit(current, callerID, isAdmin) {
		return nil, ErrForbidden
	}

	fields := bson.M{}
	if upd.Position != nil {
		if err := validatePosition(*upd.Position); err != nil {
			return nil, err
		}
		fields["position"] = upd.Position.Normalized()
	}
	if upd.Title != nil {
		fields["title"] = *upd.Title
	}
	if upd.Description != nil {
		fields["description"] = *upd.Description
	}
	if upd.Color != nil {
		fields["color"] = *upd.Color
	}
	if upd.Icon != nil {
		fields["icon"] = *upd.Icon
	}
	if upd.Radius != nil {
		if err := validateRadius(*upd.Radius); err != nil {
			return nil, err
		}
		fields["radius"] = *upd.Radius
	}
	if len(fields) == 0 {
		return current, nil
	}

	updated, err := s.repo.UpdateMarker(ctx, id, fields)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr("update marker", err)
	}
	updated.Position = updated.Position.Normalized()

	s.broadcast(EventMarkerUpdated, updated, callerID)
	return updated, nil
}

// Remove deletes a marker. Only the creator or an admin may remove it.
func (s *AreaMarkerService) Remove(ctx context.Context, callerID string, isAdmin bool, id primitive.ObjectID) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canEdit(current, callerID, isAdmin) {
		return ErrForbidden
	}

	if err := s.repo.DeleteMarker(ctx, id); err != nil {
		return storeErr("delete marker", err)
	}

	s.broadcast(EventMarkerRemoved, map[string]string{"_id": id.Hex()}, callerID)
	return nil
}

func (s *AreaMarkerService) broadcast(event string, data interface{}, authorID string) {
	if s.socket == nil {
		return
	}
	s.socket.Broadcast(event, data, "", authorID)
	logrus.WithField("event", event).Debug("Marker change broadcast")
}

// Markers without a creator can only be changed by admins.
func canEdit(marker *models.AreaMarker, callerID string, isAdmin bool) bool {
	if isAdmin {
		return true
	}
	return callerID != "" && marker.CreatedBy == callerID
}

func validatePosition(p models.Position) error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return invalid("lat must be between -90 and 90")
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return invalid("lng must be between -180 and 180")
	}
	return nil
}

func validateRadius(r float64) error {
	if math.IsNaN(r) || r < 0 {
		return invalid("radius must not be negative")
	}
	return nil
}
