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

const collectionPolarLetters = "polar_letters"

// PolarLetter is an editorial letter document. CreateTime historically uses
// the "yyyy.MM.dd" display format, kept for compatibility with existing
// documents and clients.
type PolarLetter struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Author     string             `bson:"author,omitempty" json:"author,omitempty"`
	Title      string             `bson:"title" json:"title"`
	Content    string             `bson:"content,omitempty" json:"content,omitempty"`
	URL        string             `bson:"url,omitempty" json:"url,omitempty"`
	Thumbnail  string             `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	CreateTime string             `bson:"create_time" json:"create_time"`
}

// CreatePolarLetter inserts a letter and returns its id. A blank
// create_time defaults to today.
func (d *DocStore) CreatePolarLetter(ctx context.Context, letter PolarLetter) (string, error) {
	letter.ID = primitive.NewObjectID()
	if letter.CreateTime == "" {
		letter.CreateTime = time.Now().UTC().Format("2006.01.02")
	}
	if _, err := d.db.Collection(collectionPolarLetters).InsertOne(ctx, letter); err != nil {
		return "", fmt.Errorf("failed to insert polar letter: %w", err)
	}
	return letter.ID.Hex(), nil
}

// GetPolarLetter fetches a letter by id.
func (d *DocStore) GetPolarLetter(ctx context.Context, id string) (PolarLetter, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return PolarLetter{}, ErrNotFound
	}
	var letter PolarLetter
	err = d.db.Collection(collectionPolarLetters).FindOne(ctx, bson.M{"_id": oid}).Decode(&letter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return PolarLetter{}, ErrNotFound
		}
		return PolarLetter{}, fmt.Errorf("failed to get polar letter: %w", err)
	}
	return letter, nil
}

// UpdatePolarLetter merges the given fields into a letter document.
func (d *DocStore) UpdatePolarLetter(ctx context.Context, id string, fields bson.M) (PolarLetter, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return PolarLetter{}, ErrNotFound
	}
	delete(fields, "_id")

	var letter PolarLetter
	err = d.db.Collection(collectionPolarLetters).FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&letter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return PolarLetter{}, ErrNotFound
		}
		return PolarLetter{}, fmt.Errorf("failed to update polar letter: %w", err)
	}
	return letter, nil
}

// ListPolarLetters returns the latest letters, optionally filtered by
// author. When the sorted query fails, typically from a missing index on an
// old deployment, it retries unordered rather than failing the page.
func (d *DocStore) ListPolarLetters(ctx context.Context, author string, limit int) ([]PolarLetter, error) {
	query := bson.M{}
	if author != "" {
		query["author"] = author
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "create_time", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := d.db.Collection(collectionPolarLetters).Find(ctx, query, opts)
	if err != nil {
		d.logger.WarnWithError(ctx, "sorted polar letter query failed, retrying unordered", err)
		cursor, err = d.db.Collection(collectionPolarLetters).Find(ctx, query, options.Find().SetLimit(int64(limit)))
		if err != nil {
			return nil, fmt.Errorf("failed to list polar letters: %w", err)
		}
	}
	defer cursor.Close(ctx)

	letters := []PolarLetter{}
	if err := cursor.All(ctx, &letters); err != nil {
		return nil, fmt.Errorf("failed to decode polar letters: %w", err)
	}
	return letters, nil
}

// DeletePolarLetter removes a letter by id.
func (d *DocStore) DeletePolarLetter(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := d.db.Collection(collectionPolarLetters).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete polar letter: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
