package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errBoom = errors.New("boom")

// memRequests is an in-memory FriendRequestStore with the same pending-pair uniqueness
// as the unique index on the real collection.
type memRequests struct {
	mu      sync.Mutex
	records map[primitive.ObjectID]models.FriendRequest

	failCreate error
	failList   error
	failDelete error
}

func newMemRequests() *memRequests {
	return &memRequests{records: map[primitive.ObjectID]models.FriendRequest{}}
}

func (m *memRequests) CreateRequest(_ context.Context, req *models.FriendRequest) (*models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return nil, m.failCreate
	}

	req.PairKey = models.PairKey(req.FromUserID, req.ToUserID)
	for _, r := range m.records {
		if r.PairKey == req.PairKey && r.Status == models.StatusPending {
			return nil, repository.ErrDuplicate
		}
	}
	req.ID = primitive.NewObjectID()
	m.records[req.ID] = *req
	return req, nil
}

func (m *memRequests) GetRequestByID(_ context.Context, id primitive.ObjectID) (*models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (m *memRequests) between(a, b primitive.ObjectID, pendingOnly bool) (*models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.PairKey(a, b)
	var found *models.FriendRequest
	for _, r := range m.records {
		if r.PairKey != key || (pendingOnly && r.Status != models.StatusPending) {
			continue
		}
		if found == nil || r.CreatedAt.After(found.CreatedAt) {
			r := r
			found = &r
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (m *memRequests) GetRequestBetween(_ context.Context, a, b primitive.ObjectID) (*models.FriendRequest, error) {
	return m.between(a, b, false)
}

func (m *memRequests) GetPendingBetween(_ context.Context, a, b primitive.ObjectID) (*models.FriendRequest, error) {
	return m.between(a, b, true)
}

func (m *memRequests) GetRequestsByUser(_ context.Context, userID primitive.ObjectID, direction models.Direction, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}

	out := []models.FriendRequest{}
	for _, r := range m.records {
		if r.Status != status {
			continue
		}
		switch direction {
		case models.DirectionReceived:
			if r.ToUserID != userID {
				continue
			}
		case models.DirectionSent:
			if r.FromUserID != userID {
				continue
			}
		default:
			if !r.Involves(userID) {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRequests) ClaimPending(_ context.Context, id primitive.ObjectID, status models.FriendRequestStatus, at time.Time) (*models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.Status != models.StatusPending {
		return nil, repository.ErrNotFound
	}
	before := r
	r.Status = status
	r.UpdatedAt = at
	m.records[id] = r
	return &before, nil
}

func (m *memRequests) DeleteRequest(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return m.failDelete
	}
	delete(m.records, id)
	return nil
}

func (m *memRequests) GetStaleResolved(_ context.Context, cutoff time.Time) ([]models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.FriendRequest{}
	for _, r := range m.records {
		if r.Status != models.StatusPending && r.UpdatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRequests) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memRequests) put(r models.FriendRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.PairKey = models.PairKey(r.FromUserID, r.ToUserID)
	m.records[r.ID] = r
}

// memUsers is an in-memory UserDirectory.
type memUsers struct {
	mu      sync.Mutex
	friends map[primitive.ObjectID][]primitive.ObjectID

	failAddFor primitive.ObjectID
	failExists error
}

func newMemUsers(ids ...primitive.ObjectID) *memUsers {
	u := &memUsers{friends: map[primitive.ObjectID][]primitive.ObjectID{}}
	for _, id := range ids {
		u.friends[id] = []primitive.ObjectID{}
	}
	return u
}

func (u *memUsers) Exists(_ context.Context, id primitive.ObjectID) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failExists != nil {
		return false, u.failExists
	}
	_, ok := u.friends[id]
	return ok, nil
}

func (u *memUsers) GetFriendIDs(_ context.Context, id primitive.ObjectID) ([]primitive.ObjectID, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	f, ok := u.friends[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]primitive.ObjectID(nil), f...), nil
}

func (u *memUsers) AddFriend(_ context.Context, userID, friendID primitive.ObjectID) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if userID == u.failAddFor {
		return errBoom
	}
	f, ok := u.friends[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if !containsID(f, friendID) {
		u.friends[userID] = append(f, friendID)
	}
	return nil
}

func (u *memUsers) RemoveFriend(_ context.Context, userID, friendID primitive.ObjectID) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	f, ok := u.friends[userID]
	if !ok {
		return nil
	}
	out := f[:0]
	for _, id := range f {
		if id != friendID {
			out = append(out, id)
		}
	}
	u.friends[userID] = out
	return nil
}

func (u *memUsers) areFriends(a, b primitive.ObjectID) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return containsID(u.friends[a], b)
}

func (u *memUsers) link(a, b primitive.ObjectID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.friends[a] = append(u.friends[a], b)
	u.friends[b] = append(u.friends[b], a)
}
