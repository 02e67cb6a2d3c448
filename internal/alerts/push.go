package alerts

import (
	"context"
	"fmt"
	"os"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// TopicPrefix prefixes the per-user FCM topic the mobile app subscribes to
const TopicPrefix = "finsphere-user-"

type messenger interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// PushAlerter delivers user-facing alerts to the user's devices through
// Firebase Cloud Messaging topics. Alerts without a user are skipped.
type PushAlerter struct {
	client messenger
	mock   bool
}

// NewPushAlerter creates an FCM alerter. Without a readable credentials file
// it logs pushes instead of sending them.
func NewPushAlerter(ctx context.Context, credentialsPath string) (*PushAlerter, error) {
	if credentialsPath == "" {
		log.Warn().Msg("No FCM credentials path provided, push alerts will only be logged")
		return &PushAlerter{mock: true}, nil
	}

	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		log.Warn().
			Str("credentials_path", credentialsPath).
			Msg("FCM credentials file not found, push alerts will only be logged")
		return &PushAlerter{mock: true}, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}

	log.Info().Msg("Initialized FCM push alerter")
	return &PushAlerter{client: client}, nil
}

// IsMock reports whether pushes are only logged
func (p *PushAlerter) IsMock() bool {
	return p.mock
}

// Send pushes the alert to the user's topic
func (p *PushAlerter) Send(ctx context.Context, alert Alert) error {
	if alert.UserID == "" {
		return nil
	}

	msg := buildPushMessage(alert)

	if p.mock {
		log.Info().
			Str("backend", "fcm_mock").
			Str("topic", msg.Topic).
			Str("title", alert.Title).
			Str("severity", string(alert.Severity)).
			Msg("Mock push alert (not actually sent)")
		return nil
	}

	id, err := p.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send FCM message: %w", err)
	}

	log.Debug().
		Str("message_id", id).
		Str("topic", msg.Topic).
		Msg("Sent push alert")
	return nil
}

func buildPushMessage(alert Alert) *messaging.Message {
	data := make(map[string]string, len(alert.Metadata)+1)
	for k, v := range alert.Metadata {
		data[k] = fmt.Sprint(v)
	}
	data["severity"] = string(alert.Severity)

	msg := &messaging.Message{
		Topic: UserTopic(alert.UserID),
		Notification: &messaging.Notification{
			Title: alert.Title,
			Body:  alert.Message,
		},
		Data: data,
	}

	if alert.Severity == SeverityCritical {
		msg.Android = &messaging.AndroidConfig{Priority: "high"}
		msg.APNS = &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		}
	}
	return msg
}

// UserTopic maps a user ID onto a valid FCM topic name. Characters outside
// [A-Za-z0-9-_.~%] become underscores.
func UserTopic(userID string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.', r == '~', r == '%':
			return r
		}
		return '_'
	}, userID)
	return TopicPrefix + clean
}
