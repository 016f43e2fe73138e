package processor

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"

	"portal-server/internal/clients/fcm"
	"portal-server/internal/config"
	"portal-server/internal/docstore"
	"portal-server/internal/observability"
)

// NoticeStore defines the document operations required by NoticeProcessor
type NoticeStore interface {
	CreateNotice(ctx context.Context, notice docstore.Notice) (string, error)
	GetNotice(ctx context.Context, id string) (docstore.Notice, error)
	UpdateNotice(ctx context.Context, id string, fields bson.M) (docstore.Notice, error)
	ListLatestNotices(ctx context.Context, category docstore.NoticeCategory, limit int) ([]docstore.Notice, error)
	DeleteNotice(ctx context.Context, id string) error
}

// TopicPusher delivers announcement pushes.
type TopicPusher interface {
	SendToTopic(ctx context.Context, topic string, n fcm.Notification) (string, error)
}

var ErrNoticeNotFound = errors.New("notice not found")

const (
	defaultListLimit = 20
	maxListLimit     = 100
	pushBodyLimit    = 80
)

type NoticeProcessor struct {
	store  NoticeStore
	pusher TopicPusher
	push   config.PushConfig
	logger *observability.Logger
}

func New(store NoticeStore, pusher TopicPusher, push config.PushConfig, logger *observability.Logger) NoticeProcessor {
	return NoticeProcessor{
		store:  store,
		pusher: pusher,
		push:   push,
		logger: logger,
	}
}

// CreateNoticeRequest represents a request to publish a notice
type CreateNoticeRequest struct {
	Category string
	Title    string
	Body     string
	LinkURL  string
	ImageURL string
	SendPush bool
}

// CreateNotice publishes a notice and, when requested, announces it on the
// push channel for its category. Push failure never fails the publish.
func (p *NoticeProcessor) CreateNotice(ctx context.Context, req CreateNoticeRequest) (docstore.Notice, error) {
	category := docstore.ParseNoticeCategory(req.Category)
	id, err := p.store.CreateNotice(ctx, docstore.Notice{
		Category: category,
		Title:    req.Title,
		Body:     req.Body,
		LinkURL:  req.LinkURL,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to create notice", err)
		return docstore.Notice{}, err
	}
	ctx = observability.WithFields(ctx, observability.Field{Key: "notice_id", Value: id})

	if req.SendPush {
		p.announce(ctx, category, req.Title, req.Body, id)
	}

	notice, err := p.store.GetNotice(ctx, id)
	if err != nil {
		p.logger.Error(ctx, "failed to reload notice", err)
		return docstore.Notice{}, err
	}
	return notice, nil
}

// announce pushes a notice to its category's channel topic. EVENT and
// EMERGENCY have dedicated channels; everything else goes to the general
// notice channel.
func (p *NoticeProcessor) announce(ctx context.Context, category docstore.NoticeCategory, title, body, noticeID string) {
	topic := p.push.NoticeChannelID
	switch category {
	case docstore.NoticeCategoryEvent:
		topic = p.push.EventChannelID
	case docstore.NoticeCategoryEmergency:
		topic = p.push.EmergencyChannelID
	}
	if topic == "" {
		return
	}
	if p.push.TestMode {
		topic += "_TEST"
	}
	if runes := []rune(body); len(runes) > pushBodyLimit {
		body = string(runes[:pushBodyLimit])
	}

	_, err := p.pusher.SendToTopic(ctx, topic, fcm.Notification{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"noticeId": noticeID,
			"category": string(category),
		},
	})
	if err != nil {
		p.logger.WarnWithError(ctx, "failed to push notice announcement", err)
		return
	}
	p.logger.Info(observability.WithFields(ctx, observability.Field{Key: "topic", Value: topic}), "notice announced")
}

// GetNotice fetches a notice by id.
func (p *NoticeProcessor) GetNotice(ctx context.Context, id string) (docstore.Notice, error) {
	notice, err := p.store.GetNotice(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.Notice{}, ErrNoticeNotFound
		}
		p.logger.Error(ctx, "failed to get notice", err)
		return docstore.Notice{}, err
	}
	return notice, nil
}

// UpdateNotice merges fields into a notice. A category field is normalized
// first.
func (p *NoticeProcessor) UpdateNotice(ctx context.Context, id string, fields map[string]any) (docstore.Notice, error) {
	merge := bson.M{}
	for key, value := range fields {
		if key == "category" {
			if s, ok := value.(string); ok {
				merge[key] = docstore.ParseNoticeCategory(s)
			}
			continue
		}
		merge[key] = value
	}
	notice, err := p.store.UpdateNotice(ctx, id, merge)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.Notice{}, ErrNoticeNotFound
		}
		p.logger.Error(ctx, "failed to update notice", err)
		return docstore.Notice{}, err
	}
	return notice, nil
}

// ListLatest returns the newest notices, optionally scoped to a category.
func (p *NoticeProcessor) ListLatest(ctx context.Context, category string, limit int) ([]docstore.Notice, error) {
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	notices, err := p.store.ListLatestNotices(ctx, docstore.ParseNoticeCategory(category), limit)
	if err != nil {
		p.logger.Error(ctx, "failed to list notices", err)
		return nil, err
	}
	return notices, nil
}

// DeleteNotice removes a notice by id.
func (p *NoticeProcessor) DeleteNotice(ctx context.Context, id string) error {
	if err := p.store.DeleteNotice(ctx, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNoticeNotFound
		}
		p.logger.Error(ctx, "failed to delete notice", err)
		return err
	}
	return nil
}
