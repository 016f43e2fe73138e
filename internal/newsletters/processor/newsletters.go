package processor

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"

	"portal-server/internal/docstore"
	"portal-server/internal/observability"
)

// NewsletterStore defines the document operations required by NewsletterProcessor
type NewsletterStore interface {
	CreateNewsletter(ctx context.Context, newsletter docstore.Newsletter) (string, error)
	GetNewsletter(ctx context.Context, id string) (docstore.Newsletter, error)
	UpdateNewsletter(ctx context.Context, id string, fields bson.M) (docstore.Newsletter, error)
	ListNewsletters(ctx context.Context, category string, limit int) ([]docstore.Newsletter, error)
	DeleteNewsletter(ctx context.Context, id string) error
}

var ErrNewsletterNotFound = errors.New("newsletter not found")

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type NewsletterProcessor struct {
	store  NewsletterStore
	logger *observability.Logger
}

func New(store NewsletterStore, logger *observability.Logger) NewsletterProcessor {
	return NewsletterProcessor{store: store, logger: logger}
}

// CreateNewsletter stores a newsletter entry and returns it.
func (p *NewsletterProcessor) CreateNewsletter(ctx context.Context, newsletter docstore.Newsletter) (docstore.Newsletter, error) {
	id, err := p.store.CreateNewsletter(ctx, newsletter)
	if err != nil {
		p.logger.Error(ctx, "failed to create newsletter", err)
		return docstore.Newsletter{}, err
	}
	created, err := p.store.GetNewsletter(ctx, id)
	if err != nil {
		p.logger.Error(ctx, "failed to reload newsletter", err)
		return docstore.Newsletter{}, err
	}
	return created, nil
}

// GetNewsletter fetches a newsletter by id.
func (p *NewsletterProcessor) GetNewsletter(ctx context.Context, id string) (docstore.Newsletter, error) {
	newsletter, err := p.store.GetNewsletter(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.Newsletter{}, ErrNewsletterNotFound
		}
		p.logger.Error(ctx, "failed to get newsletter", err)
		return docstore.Newsletter{}, err
	}
	return newsletter, nil
}

// UpdateNewsletter merges fields into a newsletter.
func (p *NewsletterProcessor) UpdateNewsletter(ctx context.Context, id string, fields map[string]any) (docstore.Newsletter, error) {
	merge := bson.M{}
	for key, value := range fields {
		merge[key] = value
	}
	newsletter, err := p.store.UpdateNewsletter(ctx, id, merge)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.Newsletter{}, ErrNewsletterNotFound
		}
		p.logger.Error(ctx, "failed to update newsletter", err)
		return docstore.Newsletter{}, err
	}
	return newsletter, nil
}

// ListNewsletters returns newsletters newest first by date.
func (p *NewsletterProcessor) ListNewsletters(ctx context.Context, category string, limit int) ([]docstore.Newsletter, error) {
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	newsletters, err := p.store.ListNewsletters(ctx, category, limit)
	if err != nil {
		p.logger.Error(ctx, "failed to list newsletters", err)
		return nil, err
	}
	return newsletters, nil
}

// DeleteNewsletter removes a newsletter by id.
func (p *NewsletterProcessor) DeleteNewsletter(ctx context.Context, id string) error {
	if err := p.store.DeleteNewsletter(ctx, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNewsletterNotFound
		}
		p.logger.Error(ctx, "failed to delete newsletter", err)
		return err
	}
	return nil
}
