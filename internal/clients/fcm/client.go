package fcm

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"portal-server/internal/observability"
)

// Notification is the cross-platform notification payload.
type Notification struct {
	Title    string
	Body     string
	ImageURL string
	Data     map[string]string
}

// MulticastResult reports a multicast send, including tokens the vendor
// identified as dead so callers can prune them.
type MulticastResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

// Client wraps Firebase Cloud Messaging.
type Client struct {
	messaging *messaging.Client
	logger    *observability.Logger
}

// NewClient initializes the Firebase app from a service account credentials
// file and obtains a messaging client.
func NewClient(ctx context.Context, credentialsFile string, logger *observability.Logger) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &Client{messaging: client, logger: logger}, nil
}

// Push notifications ride high priority with a short TTL so security alerts
// arrive promptly or not at all.
var pushTTL = time.Hour

func buildMessage(n Notification) messaging.Message {
	return messaging.Message{
		Notification: &messaging.Notification{
			Title:    n.Title,
			Body:     n.Body,
			ImageURL: n.ImageURL,
		},
		Data: n.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			TTL:      &pushTTL,
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Sound:            "default",
				},
			},
		},
	}
}

// SendToToken delivers a notification to a single device token.
func (c *Client) SendToToken(ctx context.Context, token string, n Notification) (string, error) {
	msg := buildMessage(n)
	msg.Token = token
	id, err := c.messaging.Send(ctx, &msg)
	if err != nil {
		return "", fmt.Errorf("failed to send push message: %w", err)
	}
	return id, nil
}

// SendToTokens delivers a notification to up to 500 device tokens.
func (c *Client) SendToTokens(ctx context.Context, tokens []string, n Notification) (MulticastResult, error) {
	base := buildMessage(n)
	msg := messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: base.Notification,
		Data:         base.Data,
		Android:      base.Android,
		APNS:         base.APNS,
	}
	batch, err := c.messaging.SendEachForMulticast(ctx, &msg)
	if err != nil {
		return MulticastResult{}, fmt.Errorf("failed to send multicast push: %w", err)
	}

	result := MulticastResult{
		SuccessCount: batch.SuccessCount,
		FailureCount: batch.FailureCount,
	}
	for i, resp := range batch.Responses {
		if resp.Success || resp.Error == nil {
			continue
		}
		if messaging.IsUnregistered(resp.Error) || errorutils.IsInvalidArgument(resp.Error) {
			result.InvalidTokens = append(result.InvalidTokens, tokens[i])
		}
	}
	if result.FailureCount > 0 {
		c.logger.Warn(observability.WithFields(ctx,
			observability.Field{Key: "failure_count", Value: result.FailureCount},
			observability.Field{Key: "invalid_tokens", Value: len(result.InvalidTokens)},
		), "multicast push had failures")
	}
	return result, nil
}

// SendToTopic delivers a notification to every subscriber of a topic.
func (c *Client) SendToTopic(ctx context.Context, topic string, n Notification) (string, error) {
	msg := buildMessage(n)
	msg.Topic = topic
	id, err := c.messaging.Send(ctx, &msg)
	if err != nil {
		return "", fmt.Errorf("failed to send topic push: %w", err)
	}
	return id, nil
}
