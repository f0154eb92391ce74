package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/internal/services"
	jwtutil "github.com/Dias221467/bladder/pkg/jwt"
	"github.com/Dias221467/bladder/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockMarkers struct {
	mock.Mock
}

func (m *mockMarkers) Query(ctx context.Context) ([]models.AreaMarker, error) {
	args := m.Called(ctx)
	markers, _ := args.Get(0).([]models.AreaMarker)
	return markers, args.Error(1)
}

func (m *mockMarkers) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AreaMarker, error) {
	args := m.Called(ctx, id)
	marker, _ := args.Get(0).(*models.AreaMarker)
	return marker, args.Error(1)
}

func (m *mockMarkers) Add(ctx context.Context, callerID string, marker models.AreaMarker) (*models.AreaMarker, error) {
	args := m.Called(ctx, callerID, marker)
	created, _ := args.Get(0).(*models.AreaMarker)
	return created, args.Error(1)
}

func (m *mockMarkers) Update(ctx context.Context, callerID string, isAdmin bool, id primitive.ObjectID, upd models.AreaMarkerUpdate) (*models.AreaMarker, error) {
	args := m.Called(ctx, callerID, isAdmin, id, upd)
	marker, _ := args.Get(0).(*models.AreaMarker)
	return marker, args.Error(1)
}

func (m *mockMarkers) Remove(ctx context.Context, callerID string, isAdmin bool, id primitive.ObjectID) error {
	return m.Called(ctx, callerID, isAdmin, id).Error(0)
}

// newMarkerRouter authenticates requests carrying the X-User header and nothing else.
func newMarkerRouter(svc *mockMarkers) *mux.Router {
	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-User"); id != "" {
				claims := &jwtutil.Claims{UserID: id, IsAdmin: r.Header.Get("X-Admin") != ""}
				r = r.WithContext(middleware.WithUser(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	})
	NewAreaMarkerHandler(svc).RegisterRoutes(router.PathPrefix("/api/area-marker").Subrouter(), middleware.RequireAuth(false))
	return router
}

func TestMarkerReadsArePublic(t *testing.T) {
	svc := new(mockMarkers)
	router := newMarkerRouter(svc)
	id := primitive.NewObjectID()
	svc.On("Query", mock.Anything).Return([]models.AreaMarker(nil), nil)
	svc.On("GetByID", mock.Anything, id).Return(&models.AreaMarker{ID: id, Title: "Park"}, nil)

	w := serve(router, http.MethodGet, "/api/area-marker", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = serve(router, http.MethodGet, "/api/area-marker/"+id.Hex(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Park")
}

func TestMarkerWritesNeedIdentity(t *testing.T) {
	svc := new(mockMarkers)
	router := newMarkerRouter(svc)

	w := serve(router, http.MethodPost, "/api/area-marker", `{"position":{"lat":1,"lng":2}}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddMarkerHandler(t *testing.T) {
	svc := new(mockMarkers)
	router := newMarkerRouter(svc)
	author := primitive.NewObjectID().Hex()

	in := models.AreaMarker{Position: models.Position{Lat: 43.2, Lng: 76.9}, Title: "Cafe"}
	out := in
	out.ID = primitive.NewObjectID()
	out.CreatedBy = author
	out.Radius = models.DefaultMarkerRadius
	svc.On("Add", mock.Anything, author, in).Return(&out, nil)
	svc.On("Add", mock.Anything, author, mock.MatchedBy(func(m models.AreaMarker) bool { return m.Position.Lat > 90 })).
		Return(nil, services.ErrInvalidRequest)

	body, _ := json.Marshal(in)
	r := newRequest(http.MethodPost, "/api/area-marker", string(body), author)
	w := record(router, r)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.AreaMarker
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, author, created.CreatedBy)

	w = record(router, newRequest(http.MethodPost, "/api/area-marker", `{"position":{"lat":91,"lng":0}}`, author))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateAndDeleteMarkerHandlers(t *testing.T) {
	svc := new(mockMarkers)
	router := newMarkerRouter(svc)
	author := primitive.NewObjectID().Hex()
	id := primitive.NewObjectID()
	title := "Renamed"

	svc.On("Update", mock.Anything, author, false, id, models.AreaMarkerUpdate{Title: &title}).
		Return(&models.AreaMarker{ID: id, Title: title}, nil)
	svc.On("Remove", mock.Anything, "intruder", false, id).Return(services.ErrForbidden)
	svc.On("Remove", mock.Anything, author, false, id).Return(nil)

	w := record(router, newRequest(http.MethodPut, "/api/area-marker/"+id.Hex(), `{"title":"Renamed"}`, author))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), title)

	w = record(router, newRequest(http.MethodDelete, "/api/area-marker/"+id.Hex(), "", "intruder"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = record(router, newRequest(http.MethodDelete, "/api/area-marker/"+id.Hex(), "", author))
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func newRequest(method, path, body, userID string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("X-User", userID)
	return r
}

func record(router http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}
