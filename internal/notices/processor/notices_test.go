package processor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"

	"portal-server/internal/clients/fcm"
	"portal-server/internal/config"
	"portal-server/internal/docstore"
	"portal-server/internal/observability"
)

type fakeNoticeStore struct {
	notices map[string]docstore.Notice
	nextID  string
}

func newFakeNoticeStore() *fakeNoticeStore {
	return &fakeNoticeStore{notices: make(map[string]docstore.Notice), nextID: "n-1"}
}

func (f *fakeNoticeStore) CreateNotice(ctx context.Context, notice docstore.Notice) (string, error) {
	f.notices[f.nextID] = notice
	return f.nextID, nil
}

func (f *fakeNoticeStore) GetNotice(ctx context.Context, id string) (docstore.Notice, error) {
	if n, ok := f.notices[id]; ok {
		return n, nil
	}
	return docstore.Notice{}, docstore.ErrNotFound
}

func (f *fakeNoticeStore) UpdateNotice(ctx context.Context, id string, fields bson.M) (docstore.Notice, error) {
	n, ok := f.notices[id]
	if !ok {
		return docstore.Notice{}, docstore.ErrNotFound
	}
	if category, ok := fields["category"].(docstore.NoticeCategory); ok {
		n.Category = category
	}
	f.notices[id] = n
	return n, nil
}

func (f *fakeNoticeStore) ListLatestNotices(ctx context.Context, category docstore.NoticeCategory, limit int) ([]docstore.Notice, error) {
	var out []docstore.Notice
	for _, n := range f.notices {
		if category != docstore.NoticeCategoryUnknown && n.Category != category {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeNoticeStore) DeleteNotice(ctx context.Context, id string) error {
	if _, ok := f.notices[id]; !ok {
		return docstore.ErrNotFound
	}
	delete(f.notices, id)
	return nil
}

type fakeTopicPusher struct {
	topics        []string
	notifications []fcm.Notification
	err           error
}

func (f *fakeTopicPusher) SendToTopic(ctx context.Context, topic string, n fcm.Notification) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.topics = append(f.topics, topic)
	f.notifications = append(f.notifications, n)
	return "msg-1", nil
}

func testPushConfig() config.PushConfig {
	return config.PushConfig{
		EventChannelID:     "event-channel",
		EmergencyChannelID: "emergency-channel",
		NoticeChannelID:    "notice-channel",
	}
}

func TestCreateNotice_PushChannelByCategory(t *testing.T) {
	tests := []struct {
		name     string
		category string
		topic    string
	}{
		{name: "event", category: "EVENT", topic: "event-channel"},
		{name: "emergency", category: "EMERGENCY", topic: "emergency-channel"},
		{name: "service guide", category: "SERVICE_GUIDE", topic: "notice-channel"},
		{name: "unknown", category: "whatever", topic: "notice-channel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pusher := &fakeTopicPusher{}
			proc := New(newFakeNoticeStore(), pusher, testPushConfig(), observability.NewLogger())

			_, err := proc.CreateNotice(context.Background(), CreateNoticeRequest{
				Category: tt.category,
				Title:    "hello",
				Body:     "world",
				SendPush: true,
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(pusher.topics) != 1 || pusher.topics[0] != tt.topic {
				t.Errorf("expected push to %q, got %v", tt.topic, pusher.topics)
			}
		})
	}
}

func TestCreateNotice_TestModeSuffix(t *testing.T) {
	pusher := &fakeTopicPusher{}
	cfg := testPushConfig()
	cfg.TestMode = true
	proc := New(newFakeNoticeStore(), pusher, cfg, observability.NewLogger())

	_, err := proc.CreateNotice(context.Background(), CreateNoticeRequest{
		Category: "EVENT",
		Title:    "hello",
		SendPush: true,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pusher.topics[0] != "event-channel_TEST" {
		t.Errorf("expected test topic suffix, got %q", pusher.topics[0])
	}
}

func TestCreateNotice_PushBodyTruncated(t *testing.T) {
	pusher := &fakeTopicPusher{}
	proc := New(newFakeNoticeStore(), pusher, testPushConfig(), observability.NewLogger())

	long := strings.Repeat("a", 200)
	_, err := proc.CreateNotice(context.Background(), CreateNoticeRequest{
		Category: "UPDATE",
		Title:    "hello",
		Body:     long,
		SendPush: true,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := pusher.notifications[0].Body; utf8.RuneCountInString(got) != 80 {
		t.Errorf("expected push body truncated to 80 characters, got %d", utf8.RuneCountInString(got))
	}
	if pusher.notifications[0].Data["noticeId"] != "n-1" {
		t.Errorf("expected noticeId in push data, got %v", pusher.notifications[0].Data)
	}
}

func TestCreateNotice_PushBodyTruncatedOnRuneBoundary(t *testing.T) {
	pusher := &fakeTopicPusher{}
	proc := New(newFakeNoticeStore(), pusher, testPushConfig(), observability.NewLogger())

	long := strings.Repeat("공", 200)
	_, err := proc.CreateNotice(context.Background(), CreateNoticeRequest{
		Category: "UPDATE",
		Title:    "공지",
		Body:     long,
		SendPush: true,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := pusher.notifications[0].Body
	if !utf8.ValidString(got) {
		t.Errorf("expected valid UTF-8 push body, got %q", got)
	}
	if utf8.RuneCountInString(got) != 80 {
		t.Errorf("expected push body truncated to 80 characters, got %d", utf8.RuneCountInString(got))
	}
}

func TestCreateNotice_PushFailureSwallowed(t *testing.T) {
	pusher := &fakeTopicPusher{err: errors.New("fcm down")}
	fakeStore := newFakeNoticeStore()
	proc := New(fakeStore, pusher, testPushConfig(), observability.NewLogger())

	notice, err := proc.CreateNotice(context.Background(), CreateNoticeRequest{
		Category: "EVENT",
		Title:    "hello",
		SendPush: true,
	})
	if err != nil {
		t.Fatalf("expected publish to survive push failure, got %v", err)
	}
	if notice.Title != "hello" {
		t.Errorf("expected created notice back, got %+v", notice)
	}
}

func TestCreateNotice_NoPushWhenNotRequested(t *testing.T) {
	pusher := &fakeTopicPusher{}
	proc := New(newFakeNoticeStore(), pusher, testPushConfig(), observability.NewLogger())

	_, err := proc.CreateNotice(context.Background(), CreateNoticeRequest{
		Category: "EVENT",
		Title:    "hello",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pusher.topics) != 0 {
		t.Errorf("expected no push, got %v", pusher.topics)
	}
}

func TestCreateNotice_EmptyTopicSkipsPush(t *testing.T) {
	pusher := &fakeTopicPusher{}
	proc := New(newFakeNoticeStore(), pusher, config.PushConfig{}, observability.NewLogger())

	_, err := proc.CreateNotice(context.Background(), CreateNoticeRequest{
		Category: "EVENT",
		Title:    "hello",
		SendPush: true,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pusher.topics) != 0 {
		t.Errorf("expected no push for blank channel, got %v", pusher.topics)
	}
}

func TestUpdateNotice_NormalizesCategory(t *testing.T) {
	fakeStore := newFakeNoticeStore()
	fakeStore.notices["n-1"] = docstore.Notice{Category: docstore.NoticeCategoryUpdate}
	proc := New(fakeStore, &fakeTopicPusher{}, testPushConfig(), observability.NewLogger())

	notice, err := proc.UpdateNotice(context.Background(), "n-1", map[string]any{"category": "event"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if notice.Category != docstore.NoticeCategoryEvent {
		t.Errorf("expected normalized EVENT category, got %q", notice.Category)
	}
}

func TestGetNotice_NotFound(t *testing.T) {
	proc := New(newFakeNoticeStore(), &fakeTopicPusher{}, testPushConfig(), observability.NewLogger())

	if _, err := proc.GetNotice(context.Background(), "missing"); !errors.Is(err, ErrNoticeNotFound) {
		t.Errorf("expected ErrNoticeNotFound, got %v", err)
	}
}

func TestDeleteNotice_NotFound(t *testing.T) {
	proc := New(newFakeNoticeStore(), &fakeTopicPusher{}, testPushConfig(), observability.NewLogger())

	if err := proc.DeleteNotice(context.Background(), "missing"); !errors.Is(err, ErrNoticeNotFound) {
		t.Errorf("expected ErrNoticeNotFound, got %v", err)
	}
}
