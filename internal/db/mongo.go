package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// One logical collection per entity.
const (
	CollectionPosts      = "blogs"
	CollectionCategories = "blog_categories"
	CollectionTags       = "blog_tags"
	CollectionComments   = "blog_comments"
)

type NewMongoClientParams struct {
	URI            string
	ConnectTimeout time.Duration
	MaxRetries     uint64
}

// NewMongoClient connects to mongo and pings it, retrying with capped
// exponential backoff. Retrying applies to connection establishment only,
// individual queries are not retried.
func NewMongoClient(ctx context.Context, params NewMongoClientParams) (*mongo.Client, error) {
	if params.ConnectTimeout == 0 {
		params.ConnectTimeout = 10 * time.Second
	}
	if params.MaxRetries == 0 {
		params.MaxRetries = 4
	}

	var client *mongo.Client
	connect := func() error {
		connectCtx, cancel := context.WithTimeout(ctx, params.ConnectTimeout)
		defer cancel()

		c, err := mongo.Connect(connectCtx, options.Client().ApplyURI(params.URI))
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		if err := c.Ping(connectCtx, nil); err != nil {
			_ = c.Disconnect(connectCtx)
			return fmt.Errorf("ping: %w", err)
		}

		client = c
		return nil
	}

	expBackoff := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), params.MaxRetries)
	err := backoff.RetryNotify(connect, backoff.WithContext(expBackoff, ctx),
		func(err error, next time.Duration) {
			log.Warnf("mongo connect failed, retrying in %s: %s", next, err)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("mongo connect (retries exhausted): %w", err)
	}

	return client, nil
}

// SetupIndexes creates the indexes the content stores rely on. The unique
// slug indexes close the check-then-insert race between concurrent creates.
func SetupIndexes(ctx context.Context, database *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	if _, err := database.Collection(CollectionPosts).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "publishedAt", Value: -1}}},
		{Keys: bson.D{{Key: "category._id", Value: 1}}},
		{Keys: bson.D{{Key: "tags.name", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create post indexes: %w", err)
	}

	if _, err := database.Collection(CollectionCategories).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("create category indexes: %w", err)
	}

	if _, err := database.Collection(CollectionTags).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create tag indexes: %w", err)
	}

	if _, err := database.Collection(CollectionComments).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "postId", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create comment indexes: %w", err)
	}

	return nil
}
