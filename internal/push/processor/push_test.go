package processor

import (
	"context"
	"errors"
	"testing"

	"portal-server/internal/clients/fcm"
	"portal-server/internal/observability"
)

type fakePushSender struct {
	tokenErr error
	multiErr error
	topicErr error
	result   fcm.MulticastResult
}

func (f *fakePushSender) SendToToken(ctx context.Context, token string, n fcm.Notification) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "msg-token", nil
}

func (f *fakePushSender) SendToTokens(ctx context.Context, tokens []string, n fcm.Notification) (fcm.MulticastResult, error) {
	if f.multiErr != nil {
		return fcm.MulticastResult{}, f.multiErr
	}
	return f.result, nil
}

func (f *fakePushSender) SendToTopic(ctx context.Context, topic string, n fcm.Notification) (string, error) {
	if f.topicErr != nil {
		return "", f.topicErr
	}
	return "msg-topic", nil
}

func TestSendToToken(t *testing.T) {
	proc := New(&fakePushSender{}, observability.NewLogger())

	result, err := proc.SendToToken(context.Background(), "tok-1", fcm.Notification{Title: "hi"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != "ok" || result.MessageID != "msg-token" {
		t.Errorf("expected ok result with message id, got %+v", result)
	}
}

func TestSendToToken_VendorError(t *testing.T) {
	vendorErr := errors.New("quota exceeded")
	proc := New(&fakePushSender{tokenErr: vendorErr}, observability.NewLogger())

	_, err := proc.SendToToken(context.Background(), "tok-1", fcm.Notification{})
	if !errors.Is(err, ErrVendor) {
		t.Errorf("expected ErrVendor, got %v", err)
	}
	if !errors.Is(err, vendorErr) {
		t.Errorf("expected original vendor error preserved, got %v", err)
	}
}

func TestSendToTokens_InvalidTokensNeverNil(t *testing.T) {
	proc := New(&fakePushSender{result: fcm.MulticastResult{SuccessCount: 3}}, observability.NewLogger())

	result, err := proc.SendToTokens(context.Background(), []string{"a", "b", "c"}, fcm.Notification{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.InvalidTokens == nil {
		t.Error("expected empty slice, got nil")
	}
	if result.Success != 3 {
		t.Errorf("expected success count 3, got %d", result.Success)
	}
}

func TestSendToTokens_ReportsInvalid(t *testing.T) {
	proc := New(&fakePushSender{result: fcm.MulticastResult{
		SuccessCount:  1,
		FailureCount:  2,
		InvalidTokens: []string{"dead-1", "dead-2"},
	}}, observability.NewLogger())

	result, err := proc.SendToTokens(context.Background(), []string{"a", "dead-1", "dead-2"}, fcm.Notification{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.InvalidTokens) != 2 {
		t.Errorf("expected 2 invalid tokens, got %v", result.InvalidTokens)
	}
	if result.Failure != 2 {
		t.Errorf("expected failure count 2, got %d", result.Failure)
	}
}

func TestSendToTopic_VendorError(t *testing.T) {
	proc := New(&fakePushSender{topicErr: errors.New("unavailable")}, observability.NewLogger())

	_, err := proc.SendToTopic(context.Background(), "news", fcm.Notification{})
	if !errors.Is(err, ErrVendor) {
		t.Errorf("expected ErrVendor, got %v", err)
	}
}
