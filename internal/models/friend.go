package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FriendRequestStatus is the lifecycle state of a friend request.
type FriendRequestStatus string

const (
	StatusPending   FriendRequestStatus = "pending"
	StatusAccepted  FriendRequestStatus = "accepted"
	StatusDeclined  FriendRequestStatus = "declined"
	StatusCancelled FriendRequestStatus = "cancelled"
)

// IsTerminal reports whether no transition leaves this status.
func (s FriendRequestStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusDeclined || s == StatusCancelled
}

type FriendRequest struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	FromUserID primitive.ObjectID  `bson:"fromUserId" json:"fromUserId"`
	ToUserID   primitive.ObjectID  `bson:"toUserId" json:"toUserId"`
	Status     FriendRequestStatus `bson:"status" json:"status"`
	PairKey    string              `bson:"pairKey" json:"-"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Involves reports whether userID is either side of the request.
func (r *FriendRequest) Involves(userID primitive.ObjectID) bool {
	return r.FromUserID == userID || r.ToUserID == userID
}

// PairKey returns the same key for (a, b) and (b, a).
func PairKey(a, b primitive.ObjectID) string {
	x, y := a.Hex(), b.Hex()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

// ReceivedFriendRequest is a pending request decorated with its sender.
type ReceivedFriendRequest struct {
	FriendRequest `bson:",inline"`
	FromUser      *MiniUser `json:"fromUser"`
}

// SentFriendRequest is a pending request decorated with its recipient.
type SentFriendRequest struct {
	FriendRequest `bson:",inline"`
	ToUser        *MiniUser `json:"toUser"`
}
