package handlers

import (
	"context"
	"net/http"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/pkg/logger"
	"github.com/Dias221467/bladder/pkg/middleware"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AreaMarkerManager is the marker store the handler exposes.
type AreaMarkerManager interface {
	Query(ctx context.Context) ([]models.AreaMarker, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.AreaMarker, error)
	Add(ctx context.Context, callerID string, marker models.AreaMarker) (*models.AreaMarker, error)
	Update(ctx context.Context, callerID string, isAdmin bool, id primitive.ObjectID, upd models.AreaMarkerUpdate) (*models.AreaMarker, error)
	Remove(ctx context.Context, callerID string, isAdmin bool, id primitive.ObjectID) error
}

type AreaMarkerHandler struct {
	Service AreaMarkerManager
}

func NewAreaMarkerHandler(service AreaMarkerManager) *AreaMarkerHandler {
	return &AreaMarkerHandler{Service: service}
}

// RegisterRoutes mounts the marker API. Reads are public; writes go through requireAuth.
func (h *AreaMarkerHandler) RegisterRoutes(r *mux.Router, requireAuth func(http.Handler) http.Handler) {
	r.HandleFunc("", h.GetMarkersHandler).Methods(http.MethodGet)
	r.HandleFunc("/", h.GetMarkersHandler).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.GetMarkerHandler).Methods(http.MethodGet)
	r.Handle("", requireAuth(http.HandlerFunc(h.AddMarkerHandler))).Methods(http.MethodPost)
	r.Handle("/", requireAuth(http.HandlerFunc(h.AddMarkerHandler))).Methods(http.MethodPost)
	r.Handle("/{id}", requireAuth(http.HandlerFunc(h.UpdateMarkerHandler))).Methods(http.MethodPut)
	r.Handle("/{id}", requireAuth(http.HandlerFunc(h.DeleteMarkerHandler))).Methods(http.MethodDelete)
}

func (h *AreaMarkerHandler) GetMarkersHandler(w http.ResponseWriter, r *http.Request) {
	markers, err := h.Service.Query(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to get area markers")
		return
	}
	if markers == nil {
		markers = []models.AreaMarker{}
	}
	writeJSON(w, http.StatusOK, markers)
}

func (h *AreaMarkerHandler) GetMarkerHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Area marker not found")
		return
	}
	marker, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get area marker")
		return
	}
	writeJSON(w, http.StatusOK, marker)
}

func (h *AreaMarkerHandler) AddMarkerHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var marker models.AreaMarker
	if err := decodeJSON(r, &marker); err != nil {
		logger.Log.WithError(err).Warn("Failed to decode area marker")
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	created, err := h.Service.Add(r.Context(), claims.UserID, marker)
	if err != nil {
		writeServiceError(w, err, "Failed to add area marker")
		return
	}

	logger.Log.WithField("userID", claims.UserID).Infof("Area marker %s added", created.ID.Hex())
	writeJSON(w, http.StatusCreated, created)
}

func (h *AreaMarkerHandler) UpdateMarkerHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Area marker not found")
		return
	}

	var upd models.AreaMarkerUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	updated, err := h.Service.Update(r.Context(), claims.UserID, claims.IsAdmin, id, upd)
	if err != nil {
		writeServiceError(w, err, "Failed to update area marker")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AreaMarkerHandler) DeleteMarkerHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Area marker not found")
		return
	}

	if err := h.Service.Remove(r.Context(), claims.UserID, claims.IsAdmin, id); err != nil {
		writeServiceError(w, err, "Failed to delete area marker")
		return
	}

	logger.Log.WithField("userID", claims.UserID).Infof("Area marker %s removed", id.Hex())
	writeJSON(w, http.StatusOK, msgBody{Msg: "Area marker deleted successfully"})
}
