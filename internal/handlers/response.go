package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dias221467/bladder/internal/services"
	"github.com/Dias221467/bladder/pkg/logger"
	"github.com/Dias221467/bladder/pkg/middleware"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type errorBody struct {
	Err string `json:"err"`
}

type msgBody struct {
	Msg string `json:"msg"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Err: msg})
}

// statusFor maps a service failure to its HTTP status.
func statusFor(err error) int {
	var storeErr *services.StoreError
	switch {
	case errors.As(err, &storeErr):
		return http.StatusInternalServerError
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrRequestNotFound),
		errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidLogin):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrDuplicateRequest),
		errors.Is(err, services.ErrAlreadyFriends),
		errors.Is(err, services.ErrNotFriends),
		errors.Is(err, services.ErrEmailTaken):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeServiceError logs err and writes its mapped status. Internal failures get fallback
// as their message so store details never reach the client.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	status := statusFor(err)
	entry := logger.Log.WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error(fallback)
		writeError(w, status, fallback)
		return
	}
	entry.Warn(fallback)
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// pathID parses a mux path variable as an ObjectID.
func pathID(r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	return id, err == nil
}

// callerID returns the authenticated caller as an ObjectID. Guests have none.
func callerID(r *http.Request) (primitive.ObjectID, bool) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil || claims.UserID == "" {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	return id, err == nil
}
