package services

import (
	"context"
	"sync"
	"testing"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memMarkers struct {
	markers map[primitive.ObjectID]models.AreaMarker
}

func newMemMarkers() *memMarkers {
	return &memMarkers{markers: map[primitive.ObjectID]models.AreaMarker{}}
}

func (m *memMarkers) CreateMarker(_ context.Context, marker *models.AreaMarker) (*models.AreaMarker, error) {
	marker.ID = primitive.NewObjectID()
	m.markers[marker.ID] = *marker
	return marker, nil
}

func (m *memMarkers) GetMarkerByID(_ context.Context, id primitive.ObjectID) (*models.AreaMarker, error) {
	marker, ok := m.markers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &marker, nil
}

func (m *memMarkers) GetAllMarkers(context.Context) ([]models.AreaMarker, error) {
	out := []models.AreaMarker{}
	for _, marker := range m.markers {
		out = append(out, marker)
	}
	return out, nil
}

func (m *memMarkers) UpdateMarker(_ context.Context, id primitive.ObjectID, fields bson.M) (*models.AreaMarker, error) {
	marker, ok := m.markers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "position":
			marker.Position = v.(models.Position)
		case "title":
			marker.Title = v.(string)
		case "description":
			marker.Description = v.(string)
		case "color":
			marker.Color = v.(int)
		case "icon":
			marker.Icon = v.(string)
		case "radius":
			marker.Radius = v.(float64)
		}
	}
	m.markers[id] = marker
	return &marker, nil
}

func (m *memMarkers) DeleteMarker(_ context.Context, id primitive.ObjectID) error {
	delete(m.markers, id)
	return nil
}

type sentEvent struct {
	Type    string
	Data    interface{}
	Room    string
	Exclude string
	UserID  string
}

type recordingSocket struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recordingSocket) Broadcast(eventType string, data interface{}, room, excludeUserID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{Type: eventType, Data: data, Room: room, Exclude: excludeUserID})
}

func (r *recordingSocket) EmitToUser(eventType string, data interface{}, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{Type: eventType, Data: data, UserID: userID})
}

func (r *recordingSocket) all() []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentEvent(nil), r.events...)
}

func TestAreaMarkerAdd(t *testing.T) {
	ctx := context.Background()
	socket := &recordingSocket{}
	svc := NewAreaMarkerService(newMemMarkers(), socket)

	created, err := svc.Add(ctx, "author", models.AreaMarker{
		Position: models.Position{Lat: 32.08, Lng: 34.78},
		Title:    "Beach",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMarkerRadius, created.Radius)
	assert.Equal(t, "author", created.CreatedBy)
	assert.Equal(t, 32.08, created.Position.Latitude)
	assert.Equal(t, 34.78, created.Position.Longitude)
	assert.False(t, created.CreatedAt.IsZero())

	events := socket.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventMarkerAdded, events[0].Type)
	assert.Equal(t, "author", events[0].Exclude)
}

func TestAreaMarkerValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewAreaMarkerService(newMemMarkers(), nil)

	cases := []struct {
		name   string
		marker models.AreaMarker
	}{
		{"lat too high", models.AreaMarker{Position: models.Position{Lat: 90.5, Lng: 0}}},
		{"lat too low", models.AreaMarker{Position: models.Position{Lat: -91, Lng: 0}}},
		{"lng out of range", models.AreaMarker{Position: models.Position{Lat: 0, Lng: 181}}},
		{"negative radius", models.AreaMarker{Position: models.Position{Lat: 0, Lng: 0}, Radius: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Add(ctx, "u", tc.marker)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	edge, err := svc.Add(ctx, "u", models.AreaMarker{Position: models.Position{Lat: -90, Lng: 180}})
	require.NoError(t, err)
	assert.Equal(t, -90.0, edge.Position.Lat)
}

func TestAreaMarkerUpdate(t *testing.T) {
	ctx := context.Background()
	socket := &recordingSocket{}
	svc := NewAreaMarkerService(newMemMarkers(), socket)

	created, err := svc.Add(ctx, "author", models.AreaMarker{Position: models.Position{Lat: 1, Lng: 1}, Title: "Old"})
	require.NoError(t, err)

	title := "New"
	_, err = svc.Update(ctx, "stranger", false, created.ID, models.AreaMarkerUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)

	pos := models.Position{Lat: 10, Lng: 20}
	updated, err := svc.Update(ctx, "author", false, created.ID, models.AreaMarkerUpdate{Title: &title, Position: &pos})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, 10.0, updated.Position.Latitude)
	assert.Equal(t, 20.0, updated.Position.Longitude)
	assert.Equal(t, models.DefaultMarkerRadius, updated.Radius)

	radius := 25.0
	updated, err = svc.Update(ctx, "admin", true, created.ID, models.AreaMarkerUpdate{Radius: &radius})
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.Radius)
	assert.Equal(t, "New", updated.Title)

	_, err = svc.Update(ctx, "author", false, primitive.NewObjectID(), models.AreaMarkerUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)

	events := socket.all()
	require.Len(t, events, 3)
	assert.Equal(t, EventMarkerUpdated, events[2].Type)
	assert.Equal(t, "admin", events[2].Exclude)
}

func TestAreaMarkerRemove(t *testing.T) {
	ctx := context.Background()
	socket := &recordingSocket{}
	store := newMemMarkers()
	svc := NewAreaMarkerService(store, socket)

	created, err := svc.Add(ctx, "author", models.AreaMarker{Position: models.Position{Lat: 1, Lng: 1}})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Remove(ctx, "", false, created.ID), ErrForbidden)
	require.NoError(t, svc.Remove(ctx, "author", false, created.ID))
	assert.Empty(t, store.markers)

	_, err = svc.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	events := socket.all()
	assert.Equal(t, EventMarkerRemoved, events[len(events)-1].Type)
}
