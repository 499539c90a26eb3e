package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Sender delivers push notifications to device tokens.
type Sender interface {
	// SendToDevices returns the tokens the provider reported as no longer
	// valid.
	SendToDevices(ctx context.Context, tokens []string, notification NotificationData) ([]string, error)
}

// Client wraps Firebase Cloud Messaging functionality
type Client struct {
	messagingClient *messaging.Client
}

// NewClient creates a new FCM client using the provided credentials file
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	logrus.Info("[FCM] Client initialized successfully")
	return &Client{messagingClient: messagingClient}, nil
}

// NotificationData contains the data to send in a push notification
type NotificationData struct {
	Title string
	Body  string
	Data  map[string]string
	// ClickAction is the URL opened when the notification is clicked.
	ClickAction string
}

func (c *Client) SendToDevices(ctx context.Context, tokens []string, notification NotificationData) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	webpush := &messaging.WebpushConfig{
		Notification: &messaging.WebpushNotification{
			Title: notification.Title,
			Body:  notification.Body,
			Icon:  "/icon-192.svg",
		},
	}
	if notification.ClickAction != "" {
		webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: notification.ClickAction}
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data:    notification.Data,
		Webpush: webpush,
	}

	response, err := c.messagingClient.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
	}

	logrus.Infof("[FCM] Multicast sent: %d success, %d failures", response.SuccessCount, response.FailureCount)

	var invalid []string
	for i, resp := range response.Responses {
		if resp.Success {
			continue
		}
		if messaging.IsRegistrationTokenNotRegistered(resp.Error) || messaging.IsInvalidArgument(resp.Error) {
			invalid = append(invalid, tokens[i])
			continue
		}
		logrus.Warnf("[FCM] Failed to send to token %s: %v", shorten(tokens[i]), resp.Error)
	}
	return invalid, nil
}

func shorten(token string) string {
	if len(token) > 20 {
		return token[:20] + "..."
	}
	return token
}
