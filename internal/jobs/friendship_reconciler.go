package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/internal/repository"
	"github.com/Dias221467/bladder/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultGracePeriod is how long a resolved request may linger before it counts as stuck.
const DefaultGracePeriod = 10 * time.Minute

// RequestLedger is the part of the friend request store the reconciler reads and cleans.
type RequestLedger interface {
	GetStaleResolved(ctx context.Context, cutoff time.Time) ([]models.FriendRequest, error)
	GetRequestBetween(ctx context.Context, userID1, userID2 primitive.ObjectID) (*models.FriendRequest, error)
	DeleteRequest(ctx context.Context, id primitive.ObjectID) error
}

// FriendGraph reads and edits the friends lists on user documents.
type FriendGraph interface {
	GetUsersWithFriends(ctx context.Context) ([]models.User, error)
	GetFriendIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	AddFriend(ctx context.Context, userID, friendID primitive.ObjectID) error
	RemoveFriend(ctx context.Context, userID, friendID primitive.ObjectID) error
}

// ReconcileReport counts what one run repaired.
type ReconcileReport struct {
	AcceptedReplayed int
	RecordsDeleted   int
	EdgesPulled      int
	Failures         int
}

// FriendshipReconciler repairs the state left behind when a resolved request or a
// friend removal was interrupted halfway.
type FriendshipReconciler struct {
	Requests RequestLedger
	Users    FriendGraph
	Grace    time.Duration
	now      func() time.Time
}

func NewFriendshipReconciler(requests RequestLedger, users FriendGraph) *FriendshipReconciler {
	return &FriendshipReconciler{
		Requests: requests,
		Users:    users,
		Grace:    DefaultGracePeriod,
		now:      time.Now,
	}
}

// Run finishes stuck requests, then pulls one-sided friendships that no request explains.
func (f *FriendshipReconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	if err := f.finishStuck(ctx, &report); err != nil {
		return report, err
	}
	if err := f.pullAsymmetric(ctx, &report); err != nil {
		return report, err
	}

	logger.Log.WithFields(logrus.Fields{
		"acceptedReplayed": report.AcceptedReplayed,
		"recordsDeleted":   report.RecordsDeleted,
		"edgesPulled":      report.EdgesPulled,
		"failures":         report.Failures,
	}).Info("Friendship reconcile completed")
	return report, nil
}

func (f *FriendshipReconciler) finishStuck(ctx context.Context, report *ReconcileReport) error {
	stale, err := f.Requests.GetStaleResolved(ctx, f.now().Add(-f.Grace))
	if err != nil {
		return fmt.Errorf("failed to fetch stale friend requests: %w", err)
	}

	for _, req := range stale {
		if req.Status == models.StatusAccepted {
			if err := f.replayAccept(ctx, req); err != nil {
				logger.Log.WithError(err).WithField("requestID", req.ID.Hex()).Warn("Could not replay accepted request")
				report.Failures++
				continue
			}
			report.AcceptedReplayed++
		}

		if err := f.Requests.DeleteRequest(ctx, req.ID); err != nil {
			logger.Log.WithError(err).WithField("requestID", req.ID.Hex()).Warn("Could not delete stale request")
			report.Failures++
			continue
		}
		report.RecordsDeleted++
	}
	return nil
}

// replayAccept makes both sides friends again. If either account is gone the survivor
// is left without the edge instead.
func (f *FriendshipReconciler) replayAccept(ctx context.Context, req models.FriendRequest) error {
	errFrom := f.Users.AddFriend(ctx, req.FromUserID, req.ToUserID)
	errTo := f.Users.AddFriend(ctx, req.ToUserID, req.FromUserID)

	switch {
	case errFrom == nil && errTo == nil:
		return nil
	case errors.Is(errFrom, repository.ErrNotFound) && errTo == nil:
		return f.Users.RemoveFriend(ctx, req.ToUserID, req.FromUserID)
	case errors.Is(errTo, repository.ErrNotFound) && errFrom == nil:
		return f.Users.RemoveFriend(ctx, req.FromUserID, req.ToUserID)
	case errors.Is(errFrom, repository.ErrNotFound) && errors.Is(errTo, repository.ErrNotFound):
		return nil
	}
	return errors.Join(errFrom, errTo)
}

func (f *FriendshipReconciler) pullAsymmetric(ctx context.Context, report *ReconcileReport) error {
	users, err := f.Users.GetUsersWithFriends(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch friend graph: %w", err)
	}

	graph := make(map[primitive.ObjectID]map[primitive.ObjectID]bool, len(users))
	for _, u := range users {
		set := make(map[primitive.ObjectID]bool, len(u.Friends))
		for _, id := range u.Friends {
			set[id] = true
		}
		graph[u.ID] = set
	}

	for _, u := range users {
		for _, v := range u.Friends {
			if graph[v][u.ID] {
				continue
			}
			pulled, err := f.repairEdge(ctx, u.ID, v)
			if err != nil {
				logger.Log.WithError(err).WithField("userID", u.ID.Hex()).Warnf("Could not repair friendship with %s", v.Hex())
				report.Failures++
				continue
			}
			if pulled {
				report.EdgesPulled++
			}
		}
	}
	return nil
}

// repairEdge pulls v from u when no request between them is in flight and u is still
// missing from v's friends. The request is checked first: an accept writes both edges
// before deleting its record, so a missing record means those writes are done.
func (f *FriendshipReconciler) repairEdge(ctx context.Context, u, v primitive.ObjectID) (bool, error) {
	_, err := f.Requests.GetRequestBetween(ctx, u, v)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return false, err
	}

	friends, err := f.Users.GetFriendIDs(ctx, v)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return true, f.Users.RemoveFriend(ctx, u, v)
	case err != nil:
		return false, err
	}
	for _, id := range friends {
		if id == u {
			return false, nil
		}
	}
	return true, f.Users.RemoveFriend(ctx, u, v)
}
