package processor

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"

	"portal-server/internal/docstore"
	"portal-server/internal/observability"
)

// LetterStore defines the document operations required by PolarLetterProcessor
type LetterStore interface {
	CreatePolarLetter(ctx context.Context, letter docstore.PolarLetter) (string, error)
	GetPolarLetter(ctx context.Context, id string) (docstore.PolarLetter, error)
	UpdatePolarLetter(ctx context.Context, id string, fields bson.M) (docstore.PolarLetter, error)
	ListPolarLetters(ctx context.Context, author string, limit int) ([]docstore.PolarLetter, error)
	DeletePolarLetter(ctx context.Context, id string) error
}

var ErrLetterNotFound = errors.New("polar letter not found")

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type PolarLetterProcessor struct {
	store  LetterStore
	logger *observability.Logger
}

func New(store LetterStore, logger *observability.Logger) PolarLetterProcessor {
	return PolarLetterProcessor{store: store, logger: logger}
}

// CreateLetter stores a letter and returns it.
func (p *PolarLetterProcessor) CreateLetter(ctx context.Context, letter docstore.PolarLetter) (docstore.PolarLetter, error) {
	id, err := p.store.CreatePolarLetter(ctx, letter)
	if err != nil {
		p.logger.Error(ctx, "failed to create polar letter", err)
		return docstore.PolarLetter{}, err
	}
	created, err := p.store.GetPolarLetter(ctx, id)
	if err != nil {
		p.logger.Error(ctx, "failed to reload polar letter", err)
		return docstore.PolarLetter{}, err
	}
	return created, nil
}

// GetLetter fetches a letter by id.
func (p *PolarLetterProcessor) GetLetter(ctx context.Context, id string) (docstore.PolarLetter, error) {
	letter, err := p.store.GetPolarLetter(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.PolarLetter{}, ErrLetterNotFound
		}
		p.logger.Error(ctx, "failed to get polar letter", err)
		return docstore.PolarLetter{}, err
	}
	return letter, nil
}

// UpdateLetter merges fields into a letter. The create_time display format
// is preserved as provided by the caller.
func (p *PolarLetterProcessor) UpdateLetter(ctx context.Context, id string, fields map[string]any) (docstore.PolarLetter, error) {
	merge := bson.M{}
	for key, value := range fields {
		merge[key] = value
	}
	letter, err := p.store.UpdatePolarLetter(ctx, id, merge)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.PolarLetter{}, ErrLetterNotFound
		}
		p.logger.Error(ctx, "failed to update polar letter", err)
		return docstore.PolarLetter{}, err
	}
	return letter, nil
}

// ListLetters returns the latest letters, optionally by author.
func (p *PolarLetterProcessor) ListLetters(ctx context.Context, author string, limit int) ([]docstore.PolarLetter, error) {
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	letters, err := p.store.ListPolarLetters(ctx, author, limit)
	if err != nil {
		p.logger.Error(ctx, "failed to list polar letters", err)
		return nil, err
	}
	return letters, nil
}

// DeleteLetter removes a letter by id.
func (p *PolarLetterProcessor) DeleteLetter(ctx context.Context, id string) error {
	if err := p.store.DeletePolarLetter(ctx, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrLetterNotFound
		}
		p.logger.Error(ctx, "failed to delete polar letter", err)
		return err
	}
	return nil
}
