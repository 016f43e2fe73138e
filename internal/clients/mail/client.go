// Package mail wraps Resend for transactional portal mail, currently only
// the initial-password message sent when a contact's account is provisioned.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resendlabs/resend-go"

	"portal-server/internal/observability"
)

var ErrBlankRecipient = errors.New("mail recipient must not be blank")

type ResendClient struct {
	client *resend.Client
	logger *observability.Logger
}

func NewResendClient(apiKey string, logger *observability.Logger) (*ResendClient, error) {
	client := resend.NewClient(apiKey)
	if client == nil {
		return nil, fmt.Errorf("failed to create Resend client")
	}
	return &ResendClient{client: client, logger: logger}, nil
}

// SendEmail delivers a single HTML mail and returns the vendor message id.
func (c *ResendClient) SendEmail(ctx context.Context, from, to, subject, htmlContent string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", ErrBlankRecipient
	}
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_to", Value: to},
		observability.Field{Key: "email_subject", Value: subject},
	)

	res, err := c.client.Emails.Send(&resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlContent,
	})
	if err != nil {
		c.logger.Error(ctx, "failed to send email", err)
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Info(ctx, "email sent")
	return res.Id, nil
}
