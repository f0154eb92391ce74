package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/internal/repository"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const searchLimit = 50

// UserStore is the user persistence used by UserService.
type UserStore interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	GetMiniByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.MiniUser, error)
	SearchByUsername(ctx context.Context, term string, limit int64) ([]models.User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, fields bson.M) error
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
	AddFcmToken(ctx context.Context, userID primitive.ObjectID, token string) error
	ClearFcmTokens(ctx context.Context, userID primitive.ObjectID) error
	TouchLastActive(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

// UserService encapsulates the business logic for user operations.
type UserService struct {
	repo UserStore
}

// NewUserService creates a new instance of UserService.
func NewUserService(repo UserStore) *UserService {
	return &UserService{
		repo: repo,
	}
}

func (s *UserService) Query(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.GetAllUsers(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list users")
		return nil, storeErr("list users", err)
	}
	return users, nil
}

// GetByID retrieves a user by their ID.
func (s *UserService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		logrus.WithError(err).WithField("userID", id.Hex()).Error("Failed to retrieve user")
		return nil, storeErr("get user", err)
	}
	return user, nil
}

func (s *UserService) GetMiniByID(ctx context.Context, id primitive.ObjectID) (*models.MiniUser, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Mini(), nil
}

func (s *UserService) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	users, err := s.repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr("get users", err)
	}
	return users, nil
}

// GetMiniByIDs returns the mini projection of every existing user among ids.
func (s *UserService) GetMiniByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.MiniUser, error) {
	users, err := s.repo.GetMiniByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr("get users", err)
	}
	return users, nil
}

// MiniIndex returns the mini projections of ids keyed by ID.
func (s *UserService) MiniIndex(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.MiniUser, error) {
	users, err := s.GetMiniByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	index := make(map[primitive.ObjectID]*models.MiniUser, len(users))
	for i := range users {
		index[users[i].ID] = &users[i]
	}
	return index, nil
}

// SearchByUsername matches usernames containing term, ignoring case.
func (s *UserService) SearchByUsername(ctx context.Context, term string) ([]models.User, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, invalid("username query parameter is required")
	}

	users, err := s.repo.SearchByUsername(ctx, term, searchLimit)
	if err != nil {
		logrus.WithError(err).WithField("term", term).Error("User search failed")
		return nil, storeErr("search users", err)
	}
	return users, nil
}

func (s *UserService) SearchByUsernameMini(ctx context.Context, term string) ([]models.MiniUser, error) {
	users, err := s.SearchByUsername(ctx, term)
	if err != nil {
		return nil, err
	}
	minis := make([]models.MiniUser, 0, len(users))
	for i := range users {
		minis = append(minis, *users[i].Mini())
	}
	return minis, nil
}

// Update applies the profile fields of upd. Only the user themself or an admin may do so.
func (s *UserService) Update(ctx context.Context, callerID string, isAdmin bool, id primitive.ObjectID, upd models.UserUpdate) (*models.User, error) {
	if !isAdmin && callerID != id.Hex() {
		return nil, ErrForbidden
	}

	fields := bson.M{}
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		if name == "" {
			return nil, invalid("fullName cannot be empty")
		}
		fields["fullName"] = name
	}
	if upd.PhoneNumber != nil {
		fields["phoneNumber"] = strings.TrimSpace(*upd.PhoneNumber)
	}
	if upd.Score != nil {
		fields["score"] = *upd.Score
	}
	if upd.UserColor != nil {
		fields["userColor"] = *upd.UserColor
	}
	if len(fields) == 0 {
		return nil, invalid("no updatable fields provided")
	}

	if err := s.repo.UpdateUser(ctx, id, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeErr("update user", err)
	}

	logrus.WithField("userID", id.Hex()).Info("User updated successfully")
	return s.GetByID(ctx, id)
}

// Remove deletes a user by their ID.
func (s *UserService) Remove(ctx context.Context, id primitive.ObjectID) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return storeErr("delete user", err)
	}
	logrus.WithField("userID", id.Hex()).Info("User deleted successfully")
	return nil
}

func (s *UserService) AddFcmToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return invalid("token is required")
	}
	if err := s.repo.AddFcmToken(ctx, userID, token); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeErr("add fcm token", err)
	}
	return nil
}

func (s *UserService) ClearFcmTokens(ctx context.Context, userID primitive.ObjectID) error {
	if err := s.repo.ClearFcmTokens(ctx, userID); err != nil {
		return storeErr("clear fcm tokens", err)
	}
	return nil
}

// UpdateLastActive stamps the user's lastActive with the current time.
func (s *UserService) UpdateLastActive(ctx context.Context, userID primitive.ObjectID) error {
	if err := s.repo.TouchLastActive(ctx, userID, time.Now()); err != nil {
		return storeErr("update last active", err)
	}
	return nil
}
