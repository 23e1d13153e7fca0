package reminder

import (
	"context"

	"firebase.google.com/go/v4/messaging"
)

// TopicPrefix prefixes the per-user FCM topic devices subscribe to.
const TopicPrefix = "user-"

// MessagingClient is the subset of the FCM client used for delivery.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers reminders through Firebase Cloud Messaging.
type FCMSender struct {
	client MessagingClient
}

// NewFCMSender creates a sender on an FCM client.
func NewFCMSender(client MessagingClient) *FCMSender {
	return &FCMSender{client: client}
}

// Send publishes the reminder to the user's topic.
func (s *FCMSender) Send(ctx context.Context, userID string, req Request) error {
	_, err := s.client.Send(ctx, &messaging.Message{
		Topic: TopicPrefix + userID,
		Notification: &messaging.Notification{
			Title: req.Title,
			Body:  req.Body,
		},
		Data: map[string]string{
			"identifier": req.Identifier,
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	})
	return err
}

// Compile-time interface check
var _ Sender = (*FCMSender)(nil)
