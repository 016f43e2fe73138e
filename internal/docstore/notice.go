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

const collectionNotices = "notices"

// NoticeCategory classifies a notice and decides which push channel an
// announcement goes out on.
type NoticeCategory string

const (
	NoticeCategoryUnknown      NoticeCategory = ""
	NoticeCategoryEvent        NoticeCategory = "EVENT"
	NoticeCategoryEmergency    NoticeCategory = "EMERGENCY"
	NoticeCategoryServiceGuide NoticeCategory = "SERVICE_GUIDE"
	NoticeCategoryUpdate       NoticeCategory = "UPDATE"
)

// ParseNoticeCategory normalizes a raw category string.
func ParseNoticeCategory(raw string) NoticeCategory {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "EVENT":
		return NoticeCategoryEvent
	case "EMERGENCY":
		return NoticeCategoryEmergency
	case "SERVICE_GUIDE":
		return NoticeCategoryServiceGuide
	case "UPDATE":
		return NoticeCategoryUpdate
	default:
		return NoticeCategoryUnknown
	}
}

// Notice is a published announcement document.
type Notice struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Category  NoticeCategory     `bson:"category,omitempty" json:"category,omitempty"`
	Title     string             `bson:"title" json:"title"`
	Body      string             `bson:"body,omitempty" json:"body,omitempty"`
	LinkURL   string             `bson:"linkUrl,omitempty" json:"linkUrl,omitempty"`
	ImageURL  string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CreateNotice inserts a notice and returns its id.
func (d *DocStore) CreateNotice(ctx context.Context, notice Notice) (string, error) {
	now := time.Now().UTC()
	notice.ID = primitive.NewObjectID()
	notice.CreatedAt = now
	notice.UpdatedAt = now
	if _, err := d.db.Collection(collectionNotices).InsertOne(ctx, notice); err != nil {
		return "", fmt.Errorf("failed to insert notice: %w", err)
	}
	return notice.ID.Hex(), nil
}

// GetNotice fetches a notice by id.
func (d *DocStore) GetNotice(ctx context.Context, id string) (Notice, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Notice{}, ErrNotFound
	}
	var notice Notice
	err = d.db.Collection(collectionNotices).FindOne(ctx, bson.M{"_id": oid}).Decode(&notice)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Notice{}, ErrNotFound
		}
		return Notice{}, fmt.Errorf("failed to get notice: %w", err)
	}
	return notice, nil
}

// UpdateNotice merges the given fields into a notice document.
func (d *DocStore) UpdateNotice(ctx context.Context, id string, fields bson.M) (Notice, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Notice{}, ErrNotFound
	}
	delete(fields, "_id")
	delete(fields, "createdAt")
	fields["updatedAt"] = time.Now().UTC()

	var notice Notice
	err = d.db.Collection(collectionNotices).FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&notice)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Notice{}, ErrNotFound
		}
		return Notice{}, fmt.Errorf("failed to update notice: %w", err)
	}
	return notice, nil
}

// ListLatestNotices returns the newest notices, optionally filtered by
// category.
func (d *DocStore) ListLatestNotices(ctx context.Context, category NoticeCategory, limit int) ([]Notice, error) {
	query := bson.M{}
	if category != NoticeCategoryUnknown {
		query["category"] = category
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := d.db.Collection(collectionNotices).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list notices: %w", err)
	}
	defer cursor.Close(ctx)

	notices := []Notice{}
	if err := cursor.All(ctx, &notices); err != nil {
		return nil, fmt.Errorf("failed to decode notices: %w", err)
	}
	return notices, nil
}

// DeleteNotice removes a notice by id.
func (d *DocStore) DeleteNotice(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := d.db.Collection(collectionNotices).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete notice: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
