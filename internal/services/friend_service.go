package services

import (
	"context"
	"errors"
	"time"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/internal/repository"
	"github.com/Dias221467/bladder/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FriendRequestStore persists friend request records.
type FriendRequestStore interface {
	CreateRequest(ctx context.Context, req *models.FriendRequest) (*models.FriendRequest, error)
	GetRequestByID(ctx context.Context, id primitive.ObjectID) (*models.FriendRequest, error)
	GetRequestBetween(ctx context.Context, userID1, userID2 primitive.ObjectID) (*models.FriendRequest, error)
	GetPendingBetween(ctx context.Context, userID1, userID2 primitive.ObjectID) (*models.FriendRequest, error)
	GetRequestsByUser(ctx context.Context, userID primitive.ObjectID, direction models.Direction, status models.FriendRequestStatus) ([]models.FriendRequest, error)
	ClaimPending(ctx context.Context, id primitive.ObjectID, status models.FriendRequestStatus, at time.Time) (*models.FriendRequest, error)
	DeleteRequest(ctx context.Context, id primitive.ObjectID) error
}

// UserDirectory is the part of the user store that owns friends sets.
type UserDirectory interface {
	Exists(ctx context.Context, id primitive.ObjectID) (bool, error)
	GetFriendIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	AddFriend(ctx context.Context, userID, friendID primitive.ObjectID) error
	RemoveFriend(ctx context.Context, userID, friendID primitive.ObjectID) error
}

// Decision is the caller's answer to a pending friend request.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
	DecisionCancel  Decision = "cancel"
)

// Status returns the terminal status a decision leads to.
func (d Decision) Status() (models.FriendRequestStatus, bool) {
	switch d {
	case DecisionAccept:
		return models.StatusAccepted, true
	case DecisionDecline:
		return models.StatusDeclined, true
	case DecisionCancel:
		return models.StatusCancelled, true
	}
	return "", false
}

// FriendService runs the friend request lifecycle and keeps friendships symmetric.
type FriendService struct {
	requests FriendRequestStore
	users    UserDirectory
	now      func() time.Time
}

// NewFriendService creates a new FriendService.
func NewFriendService(requests FriendRequestStore, users UserDirectory) *FriendService {
	return &FriendService{
		requests: requests,
		users:    users,
		now:      time.Now,
	}
}

// SendRequest creates a pending request from fromID to toID.
func (s *FriendService) SendRequest(ctx context.Context, fromID, toID primitive.ObjectID) (*models.FriendRequest, error) {
	for _, id := range []primitive.ObjectID{fromID, toID} {
		ok, err := s.users.Exists(ctx, id)
		if err != nil {
			return nil, storeErr("user lookup", err)
		}
		if !ok {
			return nil, ErrUserNotFound
		}
	}

	if fromID == toID {
		return nil, invalid("cannot send friend request to yourself")
	}

	friends, err := s.users.GetFriendIDs(ctx, fromID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeErr("friends lookup", err)
	}
	if containsID(friends, toID) {
		return nil, ErrAlreadyFriends
	}

	_, err = s.requests.GetPendingBetween(ctx, fromID, toID)
	switch {
	case err == nil:
		return nil, ErrDuplicateRequest
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storeErr("pending request lookup", err)
	}

	now := s.now()
	created, err := s.requests.CreateRequest(ctx, &models.FriendRequest{
		FromUserID: fromID,
		ToUserID:   toID,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateRequest
		}
		return nil, storeErr("insert request", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"requestID": created.ID.Hex(),
		"from":      fromID.Hex(),
		"to":        toID.Hex(),
	}).Info("Friend request sent")
	return created, nil
}

// ResolveRequest applies callerID's decision to a pending request. The record is claimed
// with a conditional write, friendships are written on accept, and the record is deleted.
// The returned value is the record as it was, with the new status and update time.
func (s *FriendService) ResolveRequest(ctx context.Context, requestID, callerID primitive.ObjectID, decision Decision) (*models.FriendRequest, error) {
	status, ok := decision.Status()
	if !ok {
		return nil, invalid("unknown decision " + string(decision))
	}

	req, err := s.requests.GetRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, storeErr("request lookup", err)
	}

	switch decision {
	case DecisionAccept, DecisionDecline:
		if req.ToUserID != callerID {
			return nil, ErrForbidden
		}
	case DecisionCancel:
		if req.FromUserID != callerID {
			return nil, ErrForbidden
		}
	}

	if req.Status != models.StatusPending {
		return nil, ErrInvalidState
	}

	now := s.now()
	claimed, err := s.requests.ClaimPending(ctx, requestID, status, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Another caller resolved it between our read and the claim.
			return nil, ErrInvalidState
		}
		return nil, storeErr("claim request", err)
	}

	log := logger.Log.WithFields(logrus.Fields{
		"requestID": requestID.Hex(),
		"decision":  decision,
		"userID":    callerID.Hex(),
	})

	if status == models.StatusAccepted {
		if err := s.befriend(ctx, claimed.FromUserID, claimed.ToUserID); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				// The surviving side may already hold the edge; the reconciler pulls it.
				if delErr := s.requests.DeleteRequest(ctx, requestID); delErr != nil {
					log.WithError(delErr).Warn("Request for deleted account left in store")
				}
				return nil, err
			}
			// The claimed record stays behind; the reconciler finishes it.
			log.WithError(err).Error("Failed to write friendship for accepted request")
			return nil, storeErr("add friends", err)
		}
	}

	if err := s.requests.DeleteRequest(ctx, requestID); err != nil {
		log.WithError(err).Warn("Resolved friend request left in store")
	}

	resolved := *claimed
	resolved.Status = status
	resolved.UpdatedAt = now

	log.Info("Friend request resolved")
	return &resolved, nil
}

func (s *FriendService) befriend(ctx context.Context, a, b primitive.ObjectID) error {
	for _, pair := range [][2]primitive.ObjectID{{a, b}, {b, a}} {
		if err := s.users.AddFriend(ctx, pair[0], pair[1]); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
	}
	return nil
}

// RemoveFriend ends the friendship between userID and friendID on both sides.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID primitive.ObjectID) error {
	friends, err := s.users.GetFriendIDs(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeErr("friends lookup", err)
	}
	if !containsID(friends, friendID) {
		return ErrNotFriends
	}

	if err := s.users.RemoveFriend(ctx, userID, friendID); err != nil {
		return storeErr("remove friend", err)
	}
	if err := s.users.RemoveFriend(ctx, friendID, userID); err != nil {
		return storeErr("remove friend", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"userID":   userID.Hex(),
		"friendID": friendID.Hex(),
	}).Info("Friend removed")
	return nil
}

// PendingReceived lists pending requests sent to userID, newest first.
func (s *FriendService) PendingReceived(ctx context.Context, userID primitive.ObjectID) ([]models.FriendRequest, error) {
	return s.pending(ctx, userID, models.DirectionReceived)
}

// PendingSent lists pending requests sent by userID, newest first.
func (s *FriendService) PendingSent(ctx context.Context, userID primitive.ObjectID) ([]models.FriendRequest, error) {
	return s.pending(ctx, userID, models.DirectionSent)
}

// AllInvolving lists pending requests on either side of userID, newest first.
func (s *FriendService) AllInvolving(ctx context.Context, userID primitive.ObjectID) ([]models.FriendRequest, error) {
	return s.pending(ctx, userID, models.DirectionEither)
}

func (s *FriendService) pending(ctx context.Context, userID primitive.ObjectID, direction models.Direction) ([]models.FriendRequest, error) {
	requests, err := s.requests.GetRequestsByUser(ctx, userID, direction, models.StatusPending)
	if err != nil {
		return nil, storeErr("list requests", err)
	}
	return requests, nil
}

// RequestBetween returns the request between the two users, or nil when there is none.
func (s *FriendService) RequestBetween(ctx context.Context, userID1, userID2 primitive.ObjectID) (*models.FriendRequest, error) {
	req, err := s.requests.GetRequestBetween(ctx, userID1, userID2)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, storeErr("request lookup", err)
	}
	return req, nil
}

// FriendsOf returns the friends set of userID, empty when the user does not exist.
func (s *FriendService) FriendsOf(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	friends, err := s.users.GetFriendIDs(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []primitive.ObjectID{}, nil
		}
		return nil, storeErr("friends lookup", err)
	}
	if friends == nil {
		friends = []primitive.ObjectID{}
	}
	return friends, nil
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
