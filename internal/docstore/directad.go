package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionDirectAds      = "direct_ads"
	collectionAdImpressions  = "directad_impressions"
	collectionAdClicks       = "directad_clicks"
	collectionAdMetricsDaily = "directad_metrics_daily"
)

// AdType is an ad placement slot.
type AdType string

// Known placement types. The zero value marks a string the parser did not
// recognize, which serializes as absent rather than failing the document.
const (
	AdTypeUnknown      AdType = ""
	AdTypeTop          AdType = "TOP"
	AdTypeBottom       AdType = "BOTTOM"
	AdTypeInterstitial AdType = "INTERSTITIAL"
	AdTypeFloatingFab  AdType = "FLOATING_FAB"
	AdTypeInline       AdType = "INLINE"
	AdTypeBanner       AdType = "BANNER"
	AdTypeEvent        AdType = "EVENT"
)

// ParseAdType normalizes a raw type string. "EVENT_FAB" is a legacy alias
// for FLOATING_FAB; anything unrecognized maps to AdTypeUnknown.
func ParseAdType(raw string) AdType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TOP":
		return AdTypeTop
	case "BOTTOM":
		return AdTypeBottom
	case "INTERSTITIAL":
		return AdTypeInterstitial
	case "FLOATING_FAB", "EVENT_FAB":
		return AdTypeFloatingFab
	case "INLINE":
		return AdTypeInline
	case "BANNER":
		return AdTypeBanner
	case "EVENT":
		return AdTypeEvent
	default:
		return AdTypeUnknown
	}
}

// AdStatus is an ad lifecycle state.
type AdStatus string

// Known statuses. As with AdType, unrecognized strings become the Unknown
// zero value instead of an error.
const (
	AdStatusUnknown  AdStatus = ""
	AdStatusDraft    AdStatus = "DRAFT"
	AdStatusActive   AdStatus = "ACTIVE"
	AdStatusPaused   AdStatus = "PAUSED"
	AdStatusArchived AdStatus = "ARCHIVED"
)

// ParseAdStatus normalizes a raw status string.
func ParseAdStatus(raw string) AdStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DRAFT":
		return AdStatusDraft
	case "ACTIVE":
		return AdStatusActive
	case "PAUSED":
		return AdStatusPaused
	case "ARCHIVED":
		return AdStatusArchived
	default:
		return AdStatusUnknown
	}
}

// DirectAd is a directly-sold ad placement document.
type DirectAd struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AdType          AdType             `bson:"adType,omitempty" json:"adType,omitempty"`
	AdvertiserName  string             `bson:"advertiserName,omitempty" json:"advertiserName,omitempty"`
	BackgroundColor string             `bson:"backgroundColor,omitempty" json:"backgroundColor,omitempty"`
	ImageURL        string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	TargetURL       string             `bson:"targetUrl,omitempty" json:"targetUrl,omitempty"`
	Status          AdStatus           `bson:"status,omitempty" json:"status,omitempty"`
	Locales         []string           `bson:"locales,omitempty" json:"locales,omitempty"`
	MinAppVersion   string             `bson:"minAppVersion,omitempty" json:"minAppVersion,omitempty"`
	MaxAppVersion   string             `bson:"maxAppVersion,omitempty" json:"maxAppVersion,omitempty"`
	PublishedAt     *time.Time         `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	StartAt         *time.Time         `bson:"startAt,omitempty" json:"startAt,omitempty"`
	EndAt           *time.Time         `bson:"endAt,omitempty" json:"endAt,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
	ViewCount       int64              `bson:"viewCount" json:"viewCount"`
	ClickCount      int64              `bson:"clickCount" json:"clickCount"`
	Meta            map[string]any     `bson:"meta,omitempty" json:"meta,omitempty"`
}

// CreateDirectAd inserts a new ad document and returns its id.
func (d *DocStore) CreateDirectAd(ctx context.Context, ad DirectAd) (string, error) {
	now := time.Now().UTC()
	ad.ID = primitive.NewObjectID()
	ad.CreatedAt = now
	ad.UpdatedAt = now
	ad.ViewCount = 0
	ad.ClickCount = 0
	if _, err := d.db.Collection(collectionDirectAds).InsertOne(ctx, ad); err != nil {
		return "", fmt.Errorf("failed to insert direct ad: %w", err)
	}
	return ad.ID.Hex(), nil
}

// GetDirectAd fetches an ad by id. A malformed id reads as not found.
func (d *DocStore) GetDirectAd(ctx context.Context, id string) (DirectAd, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return DirectAd{}, ErrNotFound
	}
	var ad DirectAd
	err = d.db.Collection(collectionDirectAds).FindOne(ctx, bson.M{"_id": oid}).Decode(&ad)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return DirectAd{}, ErrNotFound
		}
		return DirectAd{}, fmt.Errorf("failed to get direct ad: %w", err)
	}
	return ad, nil
}

// UpdateDirectAd merges the given fields into an ad document. The counters
// and createdAt are never touched here.
func (d *DocStore) UpdateDirectAd(ctx context.Context, id string, fields bson.M) (DirectAd, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return DirectAd{}, ErrNotFound
	}
	delete(fields, "_id")
	delete(fields, "createdAt")
	delete(fields, "viewCount")
	delete(fields, "clickCount")
	fields["updatedAt"] = time.Now().UTC()

	var ad DirectAd
	err = d.db.Collection(collectionDirectAds).FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ad)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return DirectAd{}, ErrNotFound
		}
		return DirectAd{}, fmt.Errorf("failed to update direct ad: %w", err)
	}
	return ad, nil
}

// DirectAdFilter narrows list queries. Unknown enum values mean "no filter".
type DirectAdFilter struct {
	Status AdStatus
	AdType AdType
}

// ListDirectAds returns the newest ads matching the filter, up to limit.
func (d *DocStore) ListDirectAds(ctx context.Context, filter DirectAdFilter, limit int) ([]DirectAd, error) {
	query := bson.M{}
	if filter.Status != AdStatusUnknown {
		query["status"] = filter.Status
	}
	if filter.AdType != AdTypeUnknown {
		query["adType"] = filter.AdType
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := d.db.Collection(collectionDirectAds).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list direct ads: %w", err)
	}
	defer cursor.Close(ctx)

	ads := []DirectAd{}
	if err := cursor.All(ctx, &ads); err != nil {
		return nil, fmt.Errorf("failed to decode direct ads: %w", err)
	}
	return ads, nil
}

// DeleteDirectAd removes an ad document by id.
func (d *DocStore) DeleteDirectAd(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := d.db.Collection(collectionDirectAds).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete direct ad: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AdMetrics is an ad's lifetime counters.
type AdMetrics struct {
	Views  int64 `json:"views"`
	Clicks int64 `json:"clicks"`
}

// GetDirectAdMetrics returns an ad's counters.
func (d *DocStore) GetDirectAdMetrics(ctx context.Context, id string) (AdMetrics, error) {
	ad, err := d.GetDirectAd(ctx, id)
	if err != nil {
		return AdMetrics{}, err
	}
	return AdMetrics{Views: ad.ViewCount, Clicks: ad.ClickCount}, nil
}

// TrackDetail is optional client context captured with an impression or
// click.
type TrackDetail struct {
	DeviceID   string         `bson:"deviceId,omitempty" json:"deviceId,omitempty"`
	Locale     string         `bson:"locale,omitempty" json:"locale,omitempty"`
	AppVersion string         `bson:"appVersion,omitempty" json:"appVersion,omitempty"`
	Platform   string         `bson:"platform,omitempty" json:"platform,omitempty"`
	Extra      map[string]any `bson:"extra,omitempty" json:"extra,omitempty"`
}

// IncrementImpression atomically bumps an ad's view counter. When detail is
// non-nil, an impression document is appended and the ad's daily metrics
// document for today (UTC) is upserted with an incremented view count.
func (d *DocStore) IncrementImpression(ctx context.Context, id string, detail *TrackDetail) error {
	return d.track(ctx, id, "viewCount", collectionAdImpressions, "views", detail)
}

// IncrementClick is the click counterpart of IncrementImpression.
func (d *DocStore) IncrementClick(ctx context.Context, id string, detail *TrackDetail) error {
	return d.track(ctx, id, "clickCount", collectionAdClicks, "clicks", detail)
}

func (d *DocStore) track(ctx context.Context, id, counterField, detailCollection, dailyField string, detail *TrackDetail) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	res, err := d.db.Collection(collectionDirectAds).UpdateOne(
		ctx,
		bson.M{"_id": oid},
		bson.M{
			"$inc": bson.M{counterField: 1},
			"$set": bson.M{"updatedAt": now},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to increment ad counter: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	if detail == nil {
		return nil
	}

	doc := bson.M{
		"adId":      oid,
		"createdAt": now,
	}
	if detail.DeviceID != "" {
		doc["deviceId"] = detail.DeviceID
	}
	if detail.Locale != "" {
		doc["locale"] = detail.Locale
	}
	if detail.AppVersion != "" {
		doc["appVersion"] = detail.AppVersion
	}
	if detail.Platform != "" {
		doc["platform"] = detail.Platform
	}
	if len(detail.Extra) > 0 {
		doc["extra"] = detail.Extra
	}
	if _, err := d.db.Collection(detailCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert track detail: %w", err)
	}

	dateKey := now.Format("2006-01-02")
	_, err = d.db.Collection(collectionAdMetricsDaily).UpdateOne(
		ctx,
		bson.M{"adId": oid, "date": dateKey},
		bson.M{
			"$inc":         bson.M{dailyField: 1},
			"$set":         bson.M{"updatedAt": now},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily ad metrics: %w", err)
	}
	return nil
}
