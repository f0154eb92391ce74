package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/pkg/logger"
	"github.com/Dias221467/bladder/pkg/middleware"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserManager is the user directory the handler exposes.
type UserManager interface {
	Query(ctx context.Context) ([]models.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetMiniByID(ctx context.Context, id primitive.ObjectID) (*models.MiniUser, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	GetMiniByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.MiniUser, error)
	SearchByUsername(ctx context.Context, term string) ([]models.User, error)
	SearchByUsernameMini(ctx context.Context, term string) ([]models.MiniUser, error)
	Update(ctx context.Context, callerID string, isAdmin bool, id primitive.ObjectID, upd models.UserUpdate) (*models.User, error)
	Remove(ctx context.Context, id primitive.ObjectID) error
	AddFcmToken(ctx context.Context, userID primitive.ObjectID, token string) error
	ClearFcmTokens(ctx context.Context, userID primitive.ObjectID) error
}

// UserHandler handles HTTP requests related to user operations.
type UserHandler struct {
	Service UserManager
}

// NewUserHandler creates a new instance of UserHandler.
func NewUserHandler(service UserManager) *UserHandler {
	return &UserHandler{Service: service}
}

// RegisterRoutes mounts the user API on r. r is expected to require an identity.
func (h *UserHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetAllUsersHandler).Methods(http.MethodGet)
	r.HandleFunc("/", h.GetAllUsersHandler).Methods(http.MethodGet)
	r.HandleFunc("/me", h.GetMeHandler).Methods(http.MethodGet)
	r.HandleFunc("/search", h.SearchUsersHandler).Methods(http.MethodGet)
	r.HandleFunc("/batch", h.BatchUsersHandler).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/fcm-token", h.AddFcmTokenHandler).Methods(http.MethodPut)
	r.HandleFunc("/fcm-token", h.ClearFcmTokensHandler).Methods(http.MethodDelete)
	r.HandleFunc("/{id}", h.GetUserHandler).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.UpdateUserHandler).Methods(http.MethodPut)
	r.Handle("/{id}", middleware.RequireAdmin(http.HandlerFunc(h.DeleteUserHandler))).Methods(http.MethodDelete)
}

func wantMini(r *http.Request) bool {
	mini, _ := strconv.ParseBool(r.URL.Query().Get("mini"))
	return mini
}

// GetAllUsersHandler lists every user.
func (h *UserHandler) GetAllUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.Query(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to retrieve users")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// GetMeHandler returns the caller's own profile.
func (h *UserHandler) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	user, err := h.Service.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "Failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetUserHandler fetches one user, optionally as the mini projection.
func (h *UserHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	if wantMini(r) {
		mini, err := h.Service.GetMiniByID(r.Context(), id)
		if err != nil {
			writeServiceError(w, err, "Failed to get user")
			return
		}
		writeJSON(w, http.StatusOK, mini)
		return
	}

	user, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// SearchUsersHandler matches users by username.
func (h *UserHandler) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("username")

	if wantMini(r) {
		users, err := h.Service.SearchByUsernameMini(r.Context(), term)
		if err != nil {
			writeServiceError(w, err, "Failed to search users")
			return
		}
		writeJSON(w, http.StatusOK, users)
		return
	}

	users, err := h.Service.SearchByUsername(r.Context(), term)
	if err != nil {
		writeServiceError(w, err, "Failed to search users")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// BatchUsersHandler fetches several users at once. GET takes ?ids=a,b; POST takes {"ids": [...]}.
func (h *UserHandler) BatchUsersHandler(w http.ResponseWriter, r *http.Request) {
	var raw []string
	if r.Method == http.MethodPost {
		var body struct {
			IDs []string `json:"ids"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
		raw = body.IDs
	} else {
		raw = strings.Split(r.URL.Query().Get("ids"), ",")
	}

	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid user ID: "+s)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	if wantMini(r) {
		users, err := h.Service.GetMiniByIDs(r.Context(), ids)
		if err != nil {
			writeServiceError(w, err, "Failed to get users")
			return
		}
		if users == nil {
			users = []models.MiniUser{}
		}
		writeJSON(w, http.StatusOK, users)
		return
	}

	users, err := h.Service.GetByIDs(r.Context(), ids)
	if err != nil {
		writeServiceError(w, err, "Failed to get users")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// UpdateUserHandler updates a profile. Users may only update themselves unless admin.
func (h *UserHandler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil || claims.UserID == "" {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	var upd models.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		logger.Log.WithError(err).Warn("Failed to decode update request")
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, err := h.Service.Update(r.Context(), claims.UserID, claims.IsAdmin, id, upd)
	if err != nil {
		writeServiceError(w, err, "Failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUserHandler removes a user. Admin only.
func (h *UserHandler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err := h.Service.Remove(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to delete user")
		return
	}

	claims := middleware.GetUserFromContext(r.Context())
	logger.Log.WithField("userID", claims.UserID).Infof("Admin deleted user %s", id.Hex())
	writeJSON(w, http.StatusOK, msgBody{Msg: "User deleted successfully"})
}

// AddFcmTokenHandler registers a device for push notifications.
func (h *UserHandler) AddFcmTokenHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.Service.AddFcmToken(r.Context(), userID, body.Token); err != nil {
		writeServiceError(w, err, "Failed to save FCM token")
		return
	}
	writeJSON(w, http.StatusOK, msgBody{Msg: "FCM token saved"})
}

// ClearFcmTokensHandler unregisters every device of the caller.
func (h *UserHandler) ClearFcmTokensHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if err := h.Service.ClearFcmTokens(r.Context(), userID); err != nil {
		writeServiceError(w, err, "Failed to clear FCM tokens")
		return
	}
	writeJSON(w, http.StatusOK, msgBody{Msg: "FCM tokens cleared"})
}
