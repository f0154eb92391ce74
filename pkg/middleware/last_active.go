package middleware

import (
	"context"
	"net/http"

	"github.com/Dias221467/bladder/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActivityRecorder stamps a user's last activity.
type ActivityRecorder interface {
	UpdateLastActive(ctx context.Context, userID primitive.ObjectID) error
}

// UpdateLastActiveMiddleware records activity for authenticated callers. Guests are skipped.
func UpdateLastActiveMiddleware(users ActivityRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r.Context())
			if claims != nil {
				if userID, err := primitive.ObjectIDFromHex(claims.UserID); err == nil {
					if err := users.UpdateLastActive(r.Context(), userID); err != nil {
						logger.Log.WithError(err).WithField("userID", claims.UserID).Debug("Could not update last active")
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
