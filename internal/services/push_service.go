package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/api/option"
)

// MulticastSender delivers one message to many device tokens. *messaging.Client satisfies it.
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// DeviceTokenStore reads and prunes the FCM tokens of a user.
type DeviceTokenStore interface {
	GetFcmTokens(ctx context.Context, userID primitive.ObjectID) ([]string, error)
	PullFcmTokens(ctx context.Context, userID primitive.ObjectID, tokens []string) error
}

// NewFirebaseMessaging builds an FCM client from a service account file.
func NewFirebaseMessaging(ctx context.Context, credentialsPath string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging: %w", err)
	}
	return client, nil
}

// PushService sends push notifications to every registered device of a user.
type PushService struct {
	sender MulticastSender
	tokens DeviceTokenStore
}

// NewPushService creates a PushService. A nil sender disables push.
func NewPushService(sender MulticastSender, tokens DeviceTokenStore) *PushService {
	return &PushService{sender: sender, tokens: tokens}
}

func (s *PushService) Enabled() bool {
	return s != nil && s.sender != nil
}

// SendToUser delivers a notification to the user's devices and drops tokens FCM rejected.
// Failures are logged only.
func (s *PushService) SendToUser(ctx context.Context, userID primitive.ObjectID, title, body string, data map[string]string) {
	if !s.Enabled() {
		logrus.WithField("userID", userID.Hex()).Debug("Push disabled; skipping")
		return
	}
	log := logrus.WithField("userID", userID.Hex())

	tokens, err := s.tokens.GetFcmTokens(ctx, userID)
	if err != nil {
		log.WithError(err).Error("FCM token fetch failed")
		return
	}
	if len(tokens) == 0 {
		log.Info("No FCM tokens for user")
		return
	}

	res, err := s.sender.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Data:         data,
		Notification: &messaging.Notification{Title: title, Body: body},
		Android:      &messaging.AndroidConfig{Priority: "high"},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default", ContentAvailable: true},
			},
		},
	})
	if err != nil {
		log.WithError(err).Error("FCM send failed")
		return
	}

	log.WithFields(logrus.Fields{
		"success": res.SuccessCount,
		"failure": res.FailureCount,
	}).Info("FCM sent")

	var failed []string
	for i, r := range res.Responses {
		if i < len(tokens) && !r.Success {
			failed = append(failed, tokens[i])
		}
	}
	if len(failed) == 0 {
		return
	}
	if err := s.tokens.PullFcmTokens(ctx, userID, failed); err != nil {
		log.WithError(err).Error("FCM token prune failed")
		return
	}
	log.WithField("count", len(failed)).Info("Pruned invalid FCM tokens")
}
