package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/internal/repository"
	"github.com/Dias221467/bladder/pkg/jwt"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"
)

const bcryptCost = 10

var userColors = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7",
	"#DDA0DD", "#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E9",
}

// RandomColor picks an avatar color for a new account.
func RandomColor() string {
	return userColors[rand.Intn(len(userColors))]
}

// AccountStore is the user persistence used by AuthService.
type AccountStore interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, fields bson.M) error
}

// GoogleIdentity is the part of a verified Google ID token we use.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// GoogleVerifier checks a Google ID token and returns its identity.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// IDTokenVerifier verifies Google ID tokens against an OAuth client ID.
type IDTokenVerifier struct {
	ClientID string
}

func (v IDTokenVerifier) Verify(ctx context.Context, token string) (*GoogleIdentity, error) {
	payload, err := idtoken.Validate(ctx, token, v.ClientID)
	if err != nil {
		return nil, err
	}
	claim := func(name string) string {
		s, _ := payload.Claims[name].(string)
		return s
	}
	return &GoogleIdentity{
		Subject: payload.Subject,
		Email:   claim("email"),
		Name:    claim("name"),
		Picture: claim("picture"),
	}, nil
}

// AuthService handles signup, login and login tokens.
type AuthService struct {
	users  AccountStore
	google GoogleVerifier
	secret string
	expiry time.Duration
}

// NewAuthService creates an AuthService. google may be nil when Google login is not configured.
func NewAuthService(users AccountStore, google GoogleVerifier, secret string, expiry time.Duration) *AuthService {
	return &AuthService{
		users:  users,
		google: google,
		secret: secret,
		expiry: expiry,
	}
}

// Signup creates a password account.
func (s *AuthService) Signup(ctx context.Context, creds models.SignupCredentials) (*models.User, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Email == "" || creds.Username == "" || creds.Password == "" || strings.TrimSpace(creds.FullName) == "" {
		logrus.Warn("Missing required fields during signup")
		return nil, invalid("missing required signup information")
	}

	existing, err := s.users.GetUserByEmail(ctx, creds.Email)
	switch {
	case err == nil && existing != nil:
		logrus.WithField("email", creds.Email).Warn("Email already in use")
		return nil, ErrEmailTaken
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, storeErr("email lookup", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, &models.User{
		Email:      creds.Email,
		Username:   creds.Username,
		Password:   string(hash),
		FullName:   strings.TrimSpace(creds.FullName),
		ImgURL:     creds.ImgURL,
		AuthMethod: models.AuthMethodEmail,
		UserColor:  RandomColor(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, storeErr("create user", err)
	}

	logrus.WithField("userID", user.ID.Hex()).Info("User signed up")
	return user, nil
}

// Login checks email and password. Every mismatch yields ErrInvalidLogin.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, storeErr("email lookup", err)
	}

	// Google-only accounts have no password.
	if user.Password == "" {
		return nil, ErrInvalidLogin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		logrus.WithField("email", email).Warn("Invalid credentials")
		return nil, ErrInvalidLogin
	}

	logrus.WithField("userID", user.ID.Hex()).Info("User authenticated successfully")
	return user, nil
}

// LoginWithGoogle signs in with a Google ID token, linking or creating the account as needed.
func (s *AuthService) LoginWithGoogle(ctx context.Context, idToken string) (*models.User, error) {
	if idToken == "" {
		return nil, invalid("missing Google ID token")
	}
	if s.google == nil {
		return nil, ErrInvalidLogin
	}

	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		logrus.WithError(err).Warn("Google token rejected")
		return nil, ErrInvalidLogin
	}
	if identity.Email == "" {
		return nil, ErrInvalidLogin
	}

	user, err := s.users.GetUserByGoogleID(ctx, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr("google id lookup", err)
	}

	user, err = s.users.GetUserByEmail(ctx, identity.Email)
	if err == nil {
		return s.linkGoogle(ctx, user, identity)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr("email lookup", err)
	}

	local := strings.Split(identity.Email, "@")[0]
	fullName := identity.Name
	if fullName == "" {
		fullName = local
	}
	user, err = s.users.CreateUser(ctx, &models.User{
		Email:      identity.Email,
		Username:   local,
		FullName:   fullName,
		ImgURL:     identity.Picture,
		GoogleID:   identity.Subject,
		AuthMethod: models.AuthMethodGoogle,
		UserColor:  RandomColor(),
	})
	if err != nil {
		return nil, storeErr("create user", err)
	}

	logrus.WithField("userID", user.ID.Hex()).Info("User created from Google login")
	return user, nil
}

func (s *AuthService) linkGoogle(ctx context.Context, user *models.User, identity *GoogleIdentity) (*models.User, error) {
	method := models.AuthMethodGoogle
	if user.AuthMethod == models.AuthMethodEmail {
		method = models.AuthMethodBoth
	}
	img := user.ImgURL
	if identity.Picture != "" {
		img = identity.Picture
	}

	fields := bson.M{"googleId": identity.Subject, "authMethod": method, "imgUrl": img}
	if err := s.users.UpdateUser(ctx, user.ID, fields); err != nil {
		return nil, storeErr("link google account", err)
	}

	user.GoogleID = identity.Subject
	user.AuthMethod = method
	user.ImgURL = img
	logrus.WithField("userID", user.ID.Hex()).Info("Google account linked")
	return user, nil
}

// LoginToken issues the signed token carried by the loginToken cookie.
func (s *AuthService) LoginToken(user *models.User) (string, error) {
	return jwt.GenerateToken(user.ID.Hex(), user.FullName, user.IsAdmin, s.secret, s.expiry)
}

// ValidateToken returns the identity in a login token.
func (s *AuthService) ValidateToken(token string) (*jwt.Claims, error) {
	return jwt.ValidateToken(token, s.secret)
}
