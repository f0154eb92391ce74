package services

import (
	"context"
	"fmt"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Socket and push events for friend requests.
const (
	EventFriendRequestReceived = "friend-request-received"
	EventFriendRequestAccepted = "friend-request-accepted"
)

// UserEmitter sends an event to every socket of one user.
type UserEmitter interface {
	EmitToUser(eventType string, data interface{}, userID string)
}

// Pusher delivers a push notification to a user's devices.
type Pusher interface {
	SendToUser(ctx context.Context, userID primitive.ObjectID, title, body string, data map[string]string)
}

// NotificationService fans friend events out to the socket channel and push.
type NotificationService struct {
	socket UserEmitter
	push   Pusher
}

func NewNotificationService(socket UserEmitter, push Pusher) *NotificationService {
	return &NotificationService{
		socket: socket,
		push:   push,
	}
}

// FriendRequestReceived tells the recipient of req about it. from may be nil.
func (s *NotificationService) FriendRequestReceived(ctx context.Context, req *models.FriendRequest, from *models.MiniUser) {
	payload := models.ReceivedFriendRequest{FriendRequest: *req, FromUser: from}
	s.emit(EventFriendRequestReceived, payload, req.ToUserID)

	s.send(ctx, req.ToUserID, "New friend request",
		fmt.Sprintf("%s sent you a friend request", displayName(from)),
		map[string]string{
			"type":       EventFriendRequestReceived,
			"requestId":  req.ID.Hex(),
			"fromUserId": req.FromUserID.Hex(),
		})
}

// FriendRequestAccepted tells the sender of req that by accepted it. by may be nil.
func (s *NotificationService) FriendRequestAccepted(ctx context.Context, req *models.FriendRequest, by *models.MiniUser) {
	payload := models.SentFriendRequest{FriendRequest: *req, ToUser: by}
	s.emit(EventFriendRequestAccepted, payload, req.FromUserID)

	s.send(ctx, req.FromUserID, "Friend request accepted",
		fmt.Sprintf("%s accepted your friend request", displayName(by)),
		map[string]string{
			"type":      EventFriendRequestAccepted,
			"requestId": req.ID.Hex(),
			"toUserId":  req.ToUserID.Hex(),
		})
}

func (s *NotificationService) emit(event string, data interface{}, to primitive.ObjectID) {
	if s.socket == nil {
		return
	}
	s.socket.EmitToUser(event, data, to.Hex())
	logrus.WithFields(logrus.Fields{"event": event, "userID": to.Hex()}).Debug("Socket event emitted")
}

func (s *NotificationService) send(ctx context.Context, to primitive.ObjectID, title, body string, data map[string]string) {
	if s.push == nil {
		return
	}
	s.push.SendToUser(ctx, to, title, body, data)
}

func displayName(u *models.MiniUser) string {
	switch {
	case u == nil:
		return "Someone"
	case u.FullName != "":
		return u.FullName
	case u.Username != "":
		return u.Username
	}
	return "Someone"
}
