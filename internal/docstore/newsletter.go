package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionNewsletters = "newsletters"

// Newsletter is an external newsletter issue linked from the portal. Date
// is "YYYY-MM-DD" so that string ordering matches chronological ordering.
type Newsletter struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Category  string             `bson:"category,omitempty" json:"category,omitempty"`
	Date      string             `bson:"date" json:"date"`
	Title     string             `bson:"title" json:"title"`
	URL       string             `bson:"url,omitempty" json:"url,omitempty"`
	Thumbnail string             `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CreateNewsletter inserts a newsletter and returns its id. A blank date
// defaults to today.
func (d *DocStore) CreateNewsletter(ctx context.Context, newsletter Newsletter) (string, error) {
	now := time.Now().UTC()
	newsletter.ID = primitive.NewObjectID()
	if newsletter.Date == "" {
		newsletter.Date = now.Format("2006-01-02")
	}
	newsletter.UpdatedAt = now
	if _, err := d.db.Collection(collectionNewsletters).InsertOne(ctx, newsletter); err != nil {
		return "", fmt.Errorf("failed to insert newsletter: %w", err)
	}
	return newsletter.ID.Hex(), nil
}

// GetNewsletter fetches a newsletter by id.
func (d *DocStore) GetNewsletter(ctx context.Context, id string) (Newsletter, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Newsletter{}, ErrNotFound
	}
	var newsletter Newsletter
	err = d.db.Collection(collectionNewsletters).FindOne(ctx, bson.M{"_id": oid}).Decode(&newsletter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Newsletter{}, ErrNotFound
		}
		return Newsletter{}, fmt.Errorf("failed to get newsletter: %w", err)
	}
	return newsletter, nil
}

// UpdateNewsletter merges the given fields into a newsletter document.
func (d *DocStore) UpdateNewsletter(ctx context.Context, id string, fields bson.M) (Newsletter, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Newsletter{}, ErrNotFound
	}
	delete(fields, "_id")
	fields["updatedAt"] = time.Now().UTC()

	var newsletter Newsletter
	err = d.db.Collection(collectionNewsletters).FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&newsletter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Newsletter{}, ErrNotFound
		}
		return Newsletter{}, fmt.Errorf("failed to update newsletter: %w", err)
	}
	return newsletter, nil
}

// ListNewsletters returns newsletters ordered by date descending,
// optionally filtered by category.
func (d *DocStore) ListNewsletters(ctx context.Context, category string, limit int) ([]Newsletter, error) {
	query := bson.M{}
	if category != "" {
		query["category"] = category
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := d.db.Collection(collectionNewsletters).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list newsletters: %w", err)
	}
	defer cursor.Close(ctx)

	newsletters := []Newsletter{}
	if err := cursor.All(ctx, &newsletters); err != nil {
		return nil, fmt.Errorf("failed to decode newsletters: %w", err)
	}
	return newsletters, nil
}

// DeleteNewsletter removes a newsletter by id.
func (d *DocStore) DeleteNewsletter(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := d.db.Collection(collectionNewsletters).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete newsletter: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
