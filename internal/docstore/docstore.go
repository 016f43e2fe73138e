// Package docstore wraps the MongoDB collections behind the CMS and
// direct-ad features. Relational data lives in internal/store; documents
// with flexible shapes and counter semantics live here.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"portal-server/internal/observability"
)

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// DocStore provides access to document-backed models.
type DocStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *observability.Logger
}

// New connects to MongoDB and verifies the connection with a ping.
func New(ctx context.Context, uri, database string, logger *observability.Logger) (*DocStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return &DocStore{
		client: client,
		db:     client.Database(database),
		logger: logger,
	}, nil
}

// NewWithClient wraps an existing client, for tests.
func NewWithClient(client *mongo.Client, database string, logger *observability.Logger) *DocStore {
	return &DocStore{
		client: client,
		db:     client.Database(database),
		logger: logger,
	}
}

// Close disconnects the underlying client.
func (d *DocStore) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}
