package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/pkg/logger"
	"github.com/Dias221467/bladder/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Authenticator issues login tokens for the three ways of signing in.
type Authenticator interface {
	Signup(ctx context.Context, creds models.SignupCredentials) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*models.User, error)
	LoginToken(user *models.User) (string, error)
}

// AuthHandler handles signup, login and logout.
type AuthHandler struct {
	Service     Authenticator
	TokenExpiry time.Duration
}

func NewAuthHandler(service Authenticator, tokenExpiry time.Duration) *AuthHandler {
	return &AuthHandler{Service: service, TokenExpiry: tokenExpiry}
}

type loginResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

// RegisterRoutes mounts the auth API on r. None of the routes need an identity.
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/signup", h.SignupHandler).Methods(http.MethodPost)
	r.HandleFunc("/login", h.LoginHandler).Methods(http.MethodPost)
	r.HandleFunc("/google", h.GoogleLoginHandler).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.LogoutHandler).Methods(http.MethodPost, http.MethodGet)
}

// SignupHandler creates a password account and logs it in.
func (h *AuthHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var creds models.SignupCredentials
	if err := decodeJSON(r, &creds); err != nil {
		logger.Log.WithError(err).Warn("Failed to decode signup request")
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, err := h.Service.Signup(r.Context(), creds)
	if err != nil {
		writeServiceError(w, err, "Failed to sign up")
		return
	}

	logger.Log.WithField("userID", user.ID.Hex()).Info("User signed up")
	h.issue(w, http.StatusCreated, user)
}

// LoginHandler logs in with email and password.
func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &credentials); err != nil {
		logger.Log.WithError(err).Warn("Failed to decode login request")
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, err := h.Service.Login(r.Context(), credentials.Email, credentials.Password)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"email": credentials.Email,
			"error": err,
		}).Warn("Authentication failed")
		writeServiceError(w, err, "Failed to log in")
		return
	}

	logger.Log.WithField("userID", user.ID.Hex()).Info("User logged in successfully")
	h.issue(w, http.StatusOK, user)
}

// GoogleLoginHandler logs in with a Google ID token, creating or linking the account.
func (h *AuthHandler) GoogleLoginHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, err := h.Service.LoginWithGoogle(r.Context(), body.Token)
	if err != nil {
		writeServiceError(w, err, "Failed to log in with Google")
		return
	}

	logger.Log.WithField("userID", user.ID.Hex()).Info("User logged in with Google")
	h.issue(w, http.StatusOK, user)
}

// LogoutHandler clears the login cookie.
func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.LoginCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) issue(w http.ResponseWriter, status int, user *models.User) {
	token, err := h.Service.LoginToken(user)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to generate JWT token")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.LoginCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.TokenExpiry.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	writeJSON(w, status, loginResponse{Success: true, Token: token, User: user})
}
