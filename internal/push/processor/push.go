package processor

import (
	"context"
	"errors"

	"portal-server/internal/clients/fcm"
	"portal-server/internal/observability"
)

// PushSender defines the vendor operations required by PushProcessor
type PushSender interface {
	SendToToken(ctx context.Context, token string, n fcm.Notification) (string, error)
	SendToTokens(ctx context.Context, tokens []string, n fcm.Notification) (fcm.MulticastResult, error)
	SendToTopic(ctx context.Context, topic string, n fcm.Notification) (string, error)
}

// ErrVendor wraps push vendor failures so the API layer can answer 502
// instead of blaming the caller.
var ErrVendor = errors.New("push vendor error")

type PushProcessor struct {
	sender PushSender
	logger *observability.Logger
}

func New(sender PushSender, logger *observability.Logger) PushProcessor {
	return PushProcessor{sender: sender, logger: logger}
}

// SendResult reports a single-target send.
type SendResult struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId"`
}

// MulticastSendResult reports a multi-token send with dead tokens called
// out for pruning.
type MulticastSendResult struct {
	Status        string   `json:"status"`
	Success       int      `json:"success"`
	Failure       int      `json:"failure"`
	InvalidTokens []string `json:"invalidTokens"`
}

// SendToToken delivers a notification to one device.
func (p *PushProcessor) SendToToken(ctx context.Context, token string, n fcm.Notification) (SendResult, error) {
	id, err := p.sender.SendToToken(ctx, token, n)
	if err != nil {
		p.logger.Error(ctx, "failed to send push to token", err)
		return SendResult{}, errors.Join(ErrVendor, err)
	}
	return SendResult{Status: "ok", MessageID: id}, nil
}

// SendToTokens delivers a notification to a token batch. Partial failures
// are reported, not retried.
func (p *PushProcessor) SendToTokens(ctx context.Context, tokens []string, n fcm.Notification) (MulticastSendResult, error) {
	result, err := p.sender.SendToTokens(ctx, tokens, n)
	if err != nil {
		p.logger.Error(ctx, "failed to send multicast push", err)
		return MulticastSendResult{}, errors.Join(ErrVendor, err)
	}
	invalid := result.InvalidTokens
	if invalid == nil {
		invalid = []string{}
	}
	return MulticastSendResult{
		Status:        "ok",
		Success:       result.SuccessCount,
		Failure:       result.FailureCount,
		InvalidTokens: invalid,
	}, nil
}

// SendToTopic delivers a notification to a topic.
func (p *PushProcessor) SendToTopic(ctx context.Context, topic string, n fcm.Notification) (SendResult, error) {
	id, err := p.sender.SendToTopic(ctx, topic, n)
	if err != nil {
		p.logger.Error(ctx, "failed to send topic push", err)
		return SendResult{}, errors.Join(ErrVendor, err)
	}
	return SendResult{Status: "ok", MessageID: id}, nil
}
