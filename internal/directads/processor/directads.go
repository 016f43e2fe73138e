package processor

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"portal-server/internal/docstore"
	"portal-server/internal/observability"
)

// AdStore defines the document operations required by DirectAdProcessor
type AdStore interface {
	CreateDirectAd(ctx context.Context, ad docstore.DirectAd) (string, error)
	GetDirectAd(ctx context.Context, id string) (docstore.DirectAd, error)
	UpdateDirectAd(ctx context.Context, id string, fields bson.M) (docstore.DirectAd, error)
	ListDirectAds(ctx context.Context, filter docstore.DirectAdFilter, limit int) ([]docstore.DirectAd, error)
	DeleteDirectAd(ctx context.Context, id string) error
	GetDirectAdMetrics(ctx context.Context, id string) (docstore.AdMetrics, error)
	IncrementImpression(ctx context.Context, id string, detail *docstore.TrackDetail) error
	IncrementClick(ctx context.Context, id string, detail *docstore.TrackDetail) error
}

var ErrAdNotFound = errors.New("ad not found")

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type DirectAdProcessor struct {
	store  AdStore
	logger *observability.Logger
}

func New(store AdStore, logger *observability.Logger) DirectAdProcessor {
	return DirectAdProcessor{store: store, logger: logger}
}

// CreateAdRequest represents a request to create a direct ad. Enum fields
// arrive as raw strings and are normalized; unknown values are kept as the
// explicit Unknown variant rather than rejected, because legacy clients
// still send retired type names.
type CreateAdRequest struct {
	AdType          string
	AdvertiserName  string
	BackgroundColor string
	ImageURL        string
	TargetURL       string
	Status          string
	Locales         []string
	MinAppVersion   string
	MaxAppVersion   string
	PublishedAt     *time.Time
	StartAt         *time.Time
	EndAt           *time.Time
	Meta            map[string]any
}

// CreateAd stores a new ad and returns its id.
func (p *DirectAdProcessor) CreateAd(ctx context.Context, req CreateAdRequest) (string, error) {
	status := docstore.ParseAdStatus(req.Status)
	if req.Status == "" {
		status = docstore.AdStatusDraft
	}
	id, err := p.store.CreateDirectAd(ctx, docstore.DirectAd{
		AdType:          docstore.ParseAdType(req.AdType),
		AdvertiserName:  req.AdvertiserName,
		BackgroundColor: req.BackgroundColor,
		ImageURL:        req.ImageURL,
		TargetURL:       req.TargetURL,
		Status:          status,
		Locales:         req.Locales,
		MinAppVersion:   req.MinAppVersion,
		MaxAppVersion:   req.MaxAppVersion,
		PublishedAt:     req.PublishedAt,
		StartAt:         req.StartAt,
		EndAt:           req.EndAt,
		Meta:            req.Meta,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to create direct ad", err)
		return "", err
	}
	p.logger.Info(observability.WithFields(ctx, observability.Field{Key: "ad_id", Value: id}), "direct ad created")
	return id, nil
}

// GetAd fetches an ad by id.
func (p *DirectAdProcessor) GetAd(ctx context.Context, id string) (docstore.DirectAd, error) {
	ad, err := p.store.GetDirectAd(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.DirectAd{}, ErrAdNotFound
		}
		p.logger.Error(ctx, "failed to get direct ad", err)
		return docstore.DirectAd{}, err
	}
	return ad, nil
}

// UpdateAd merges the given fields into an ad. Enum-valued fields are
// normalized before the merge.
func (p *DirectAdProcessor) UpdateAd(ctx context.Context, id string, fields map[string]any) (docstore.DirectAd, error) {
	merge := bson.M{}
	for key, value := range fields {
		switch key {
		case "adType":
			if s, ok := value.(string); ok {
				merge[key] = docstore.ParseAdType(s)
			}
		case "status":
			if s, ok := value.(string); ok {
				merge[key] = docstore.ParseAdStatus(s)
			}
		default:
			merge[key] = value
		}
	}
	ad, err := p.store.UpdateDirectAd(ctx, id, merge)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.DirectAd{}, ErrAdNotFound
		}
		p.logger.Error(ctx, "failed to update direct ad", err)
		return docstore.DirectAd{}, err
	}
	return ad, nil
}

// ListAds returns ads matching the filter. The limit is clamped to 1..200;
// "all", "*" and blank filter values are ignored. When a filtered query
// matches nothing the unfiltered list is returned instead, so a dashboard
// with a stale filter still shows inventory.
func (p *DirectAdProcessor) ListAds(ctx context.Context, status, adType string, limit int) ([]docstore.DirectAd, error) {
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	filter := docstore.DirectAdFilter{
		Status: docstore.ParseAdStatus(normalizeFilter(status)),
		AdType: docstore.ParseAdType(normalizeFilter(adType)),
	}
	ads, err := p.store.ListDirectAds(ctx, filter, limit)
	if err != nil {
		p.logger.Error(ctx, "failed to list direct ads", err)
		return nil, err
	}
	filtered := filter.Status != docstore.AdStatusUnknown || filter.AdType != docstore.AdTypeUnknown
	if len(ads) == 0 && filtered {
		ads, err = p.store.ListDirectAds(ctx, docstore.DirectAdFilter{}, limit)
		if err != nil {
			p.logger.Error(ctx, "failed to list direct ads unfiltered", err)
			return nil, err
		}
	}
	return ads, nil
}

// DeleteAd removes an ad by id.
func (p *DirectAdProcessor) DeleteAd(ctx context.Context, id string) error {
	if err := p.store.DeleteDirectAd(ctx, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrAdNotFound
		}
		p.logger.Error(ctx, "failed to delete direct ad", err)
		return err
	}
	return nil
}

// GetMetrics returns an ad's lifetime counters.
func (p *DirectAdProcessor) GetMetrics(ctx context.Context, id string) (docstore.AdMetrics, error) {
	metrics, err := p.store.GetDirectAdMetrics(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.AdMetrics{}, ErrAdNotFound
		}
		p.logger.Error(ctx, "failed to get ad metrics", err)
		return docstore.AdMetrics{}, err
	}
	return metrics, nil
}

// TrackImpression records one view for an ad.
func (p *DirectAdProcessor) TrackImpression(ctx context.Context, id string, detail *docstore.TrackDetail) error {
	if err := p.store.IncrementImpression(ctx, id, detail); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrAdNotFound
		}
		p.logger.Error(ctx, "failed to track impression", err)
		return err
	}
	return nil
}

// TrackClick records one click for an ad.
func (p *DirectAdProcessor) TrackClick(ctx context.Context, id string, detail *docstore.TrackDetail) error {
	if err := p.store.IncrementClick(ctx, id, detail); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrAdNotFound
		}
		p.logger.Error(ctx, "failed to track click", err)
		return err
	}
	return nil
}

// normalizeFilter treats "all" and "*" as no filter.
func normalizeFilter(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "all") || raw == "*" {
		return ""
	}
	return raw
}
