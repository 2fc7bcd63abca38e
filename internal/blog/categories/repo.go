package categories

import (
	"context"
	"fmt"
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

// PostCounter reports how many posts currently embed a given category id.
// Implemented by the posts repo, checked at delete time instead of a
// foreign key constraint.
type PostCounter interface {
	CountByCategoryID(ctx context.Context, categoryID primitive.ObjectID) (int64, error)
}

type Repo struct {
	categories  *mongo.Collection
	postCounter PostCounter
}

func NewRepo(database *mongo.Database, postCounter PostCounter) *Repo {
	return &Repo{
		categories:  database.Collection(db.CollectionCategories),
		postCounter: postCounter,
	}
}

func (r *Repo) Create(ctx context.Context, input CategoryInput) (*Category, error) {
	slug := input.Slug
	if slug == "" {
		slug = textutil.GenerateSlug(input.Name)
	}

	taken, err := r.slugExists(ctx, slug, primitive.NilObjectID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlugTaken
	}

	now := time.Now().UTC()
	category := &Category{
		Name:        input.Name,
		Slug:        slug,
		Description: input.Description,
		Color:       input.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	res, err := r.categories.InsertOne(ctx, category)
	if err != nil {
		if pkg.IsDuplicateKeyError(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}

	category.ID = res.InsertedID.(primitive.ObjectID)
	return category, nil
}

func (r *Repo) Update(ctx context.Context, id primitive.ObjectID, update CategoryUpdate) (*Category, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		existing.Name = *update.Name
		// the slug follows the name unless explicitly overridden
		if update.Slug == nil {
			existing.Slug = textutil.GenerateSlug(*update.Name)
		}
	}
	if update.Slug != nil {
		existing.Slug = *update.Slug
	}
	if update.Name != nil || update.Slug != nil {
		taken, err := r.slugExists(ctx, existing.Slug, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrSlugTaken
		}
	}
	if update.Description != nil {
		existing.Description = *update.Description
	}
	if update.Color != nil {
		existing.Color = *update.Color
	}
	existing.UpdatedAt = time.Now().UTC()

	res, err := r.categories.ReplaceOne(ctx, bson.M{"_id": id}, existing)
	if err != nil {
		if pkg.IsDuplicateKeyError(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("replace category: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrCategoryNotFound
	}

	return existing, nil
}

// Delete removes the category, unless posts still embed it.
func (r *Repo) Delete(ctx context.Context, id primitive.ObjectID) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "categoriesRepo.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	postsCount, err := r.postCounter.CountByCategoryID(ctx, id)
	if err != nil {
		return fmt.Errorf("count posts for category: %w", err)
	}
	if postsCount > 0 {
		return &CategoryInUseError{PostsCount: postsCount}
	}

	res, err := r.categories.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *Repo) List(ctx context.Context) ([]*Category, error) {
	cursor, err := r.categories.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}

	var categories []*Category
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return categories, nil
}

func (r *Repo) GetByID(ctx context.Context, id primitive.ObjectID) (*Category, error) {
	var category Category
	if err := r.categories.FindOne(ctx, bson.M{"_id": id}).Decode(&category); err != nil {
		if pkg.IsNoDocumentsError(err) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return &category, nil
}

func (r *Repo) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	var category Category
	if err := r.categories.FindOne(ctx, bson.M{"slug": slug}).Decode(&category); err != nil {
		if pkg.IsNoDocumentsError(err) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("find category by slug: %w", err)
	}
	return &category, nil
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	return r.categories.CountDocuments(ctx, bson.M{})
}

// DeleteAll is used by the development test-setup endpoint only.
func (r *Repo) DeleteAll(ctx context.Context) error {
	_, err := r.categories.DeleteMany(ctx, bson.M{})
	return err
}

func (r *Repo) slugExists(ctx context.Context, slug string, excludeID primitive.ObjectID) (bool, error) {
	filter := bson.M{"slug": slug}
	if excludeID != primitive.NilObjectID {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	count, err := r.categories.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("count categories by slug: %w", err)
	}
	return count > 0, nil
}
