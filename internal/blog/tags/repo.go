package tags

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

	"github.com/techieonvacation/renderwise-backend/internal/db"
	"github.com/techieonvacation/renderwise-backend/internal/telemetry/tracing"
	"github.com/techieonvacation/renderwise-backend/internal/textutil"
	"github.com/techieonvacation/renderwise-backend/pkg"
)

var ErrTagNameEmpty = errors.New("tag name empty")

type Repo struct {
	tags *mongo.Collection
	// popularity is aggregated over the posts collection's embedded tag
	// arrays, not over the canonical tags, so it reflects actual usage
	posts *mongo.Collection
}

func NewRepo(database *mongo.Database) *Repo {
	return &Repo{
		tags:  database.Collection(db.CollectionTags),
		posts: database.Collection(db.CollectionPosts),
	}
}

// GetOrCreate looks a tag up by exact name and creates it with a derived
// slug when absent.
func (r *Repo) GetOrCreate(ctx context.Context, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTagNameEmpty
	}

	var existing Tag
	err := r.tags.FindOne(ctx, bson.M{"name": name}).Decode(&existing)
	if err == nil {
		return &existing, nil
	}
	if !pkg.IsNoDocumentsError(err) {
		return nil, fmt.Errorf("find tag: %w", err)
	}

	tag := &Tag{
		Name:      name,
		Slug:      textutil.GenerateSlug(name),
		CreatedAt: time.Now().UTC(),
	}
	res, err := r.tags.InsertOne(ctx, tag)
	if err != nil {
		if pkg.IsDuplicateKeyError(err) {
			// concurrent create with the same name won the race
			if ferr := r.tags.FindOne(ctx, bson.M{"name": name}).Decode(&existing); ferr == nil {
				return &existing, nil
			}
		}
		return nil, fmt.Errorf("insert tag: %w", err)
	}

	tag.ID = res.InsertedID.(primitive.ObjectID)
	return tag, nil
}

func (r *Repo) List(ctx context.Context) (_ []*Tag, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "tagsRepo.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cursor, err := r.tags.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find tags: %w", err)
	}

	var tags []*Tag
	if err := cursor.All(ctx, &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

// Popular returns the most used tags, counted across all posts' embedded
// tag arrays.
func (r *Repo) Popular(ctx context.Context, limit int) (_ []*PopularTag, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "tagsRepo.popular")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if limit < 1 {
		limit = 10
	}

	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$tags"}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$tags._id",
			"name":  bson.M{"$first": "$tags.name"},
			"slug":  bson.M{"$first": "$tags.slug"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "name", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}

	cursor, err := r.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate popular tags: %w", err)
	}

	var popular []*PopularTag
	if err := cursor.All(ctx, &popular); err != nil {
		return nil, fmt.Errorf("decode popular tags: %w", err)
	}
	return popular, nil
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	return r.tags.CountDocuments(ctx, bson.M{})
}

// DeleteAll is used by the development test-setup endpoint only.
func (r *Repo) DeleteAll(ctx context.Context) error {
	_, err := r.tags.DeleteMany(ctx, bson.M{})
	return err
}
