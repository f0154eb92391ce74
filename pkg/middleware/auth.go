package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtutil "github.com/Dias221467/bladder/pkg/jwt"
	"github.com/Dias221467/bladder/pkg/logger"
)

type contextKey string

// UserContextKey holds the *jwt.Claims of the caller.
const UserContextKey contextKey = "user"

// LoginCookie is the cookie that carries the login token.
const LoginCookie = "loginToken"

// TokenFromRequest returns the login token from the cookie or the Authorization header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(LoginCookie); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if parts := strings.Fields(auth); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

// AuthMiddleware attaches the caller's identity when a valid token is present.
// It never rejects; RequireAuth and RequireAdmin do that.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := jwtutil.ValidateToken(token, secret)
			if err != nil {
				logger.Log.WithError(err).Debug("Ignoring invalid login token")
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous callers with 401. In guest mode they continue as Guest.
func RequireAuth(guestMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUserFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}
			if guestMode {
				guest := &jwtutil.Claims{UserID: "", FullName: "Guest"}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, guest)))
				return
			}
			http.Error(w, "Not Authenticated", http.StatusUnauthorized)
		})
	}
}

// RequireAdmin rejects non-admin callers with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserFromContext(r.Context())
		if claims == nil {
			http.Error(w, "Not Authenticated", http.StatusUnauthorized)
			return
		}
		if !claims.IsAdmin {
			logger.Log.WithField("userID", claims.UserID).Warn(claims.FullName + " attempted to perform admin action")
			http.Error(w, "Not Authorized", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext returns the caller's claims, or nil for anonymous requests.
func GetUserFromContext(ctx context.Context) *jwtutil.Claims {
	claims, _ := ctx.Value(UserContextKey).(*jwtutil.Claims)
	return claims
}

// WithUser returns a copy of ctx carrying claims.
func WithUser(ctx context.Context, claims *jwtutil.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// SocketIdentity resolves the user of a websocket handshake from the token query
// parameter or the login cookie. Anonymous sockets get "".
func SocketIdentity(secret string) func(r *http.Request) string {
	return func(r *http.Request) string {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = TokenFromRequest(r)
		}
		if token == "" {
			return ""
		}
		claims, err := jwtutil.ValidateToken(token, secret)
		if err != nil {
			logger.Log.WithError(err).Debug("Socket token rejected")
			return ""
		}
		return claims.UserID
	}
}
