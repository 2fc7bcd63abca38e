package blog

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/techieonvacation/renderwise-backend/internal/db"
	"github.com/techieonvacation/renderwise-backend/internal/telemetry/tracing"
	"github.com/techieonvacation/renderwise-backend/pkg"
)

const relatedPostsDefaultLimit = 4

var listSortFields = map[string]string{
	"createdAt":   "createdAt",
	"publishedAt": "publishedAt",
	"title":       "title",
	"views":       "views",
	"likes":       "likes",
}

type Repo struct {
	posts    *mongo.Collection
	comments *mongo.Collection
}

func NewRepo(mongoDB *mongo.Database) *Repo {
	return &Repo{
		posts:    mongoDB.Collection(db.CollectionPosts),
		comments: mongoDB.Collection(db.CollectionComments),
	}
}

func (r *Repo) Insert(ctx context.Context, post *Post) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.insert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	res, err := r.posts.InsertOne(ctx, post)
	if err != nil {
		if pkg.IsDuplicateKeyError(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("insert post: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		post.ID = oid
	}
	return nil
}

func (r *Repo) Save(ctx context.Context, post *Post) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	res, err := r.posts.ReplaceOne(ctx, bson.M{"_id": post.ID}, post)
	if err != nil {
		if pkg.IsDuplicateKeyError(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("save post: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

// Delete removes the post and all its comments. The two deletes are not
// atomic, a crash in between leaves orphaned comments behind.
func (r *Repo) Delete(ctx context.Context, id primitive.ObjectID) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	res, err := r.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrPostNotFound
	}
	if _, err := r.comments.DeleteMany(ctx, bson.M{"postId": id}); err != nil {
		return fmt.Errorf("delete post comments: %w", err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id primitive.ObjectID) (*Post, error) {
	var post Post
	if err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		if pkg.IsNoDocumentsError(err) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

func (r *Repo) GetBySlug(ctx context.Context, slug string) (*Post, error) {
	var post Post
	if err := r.posts.FindOne(ctx, bson.M{"slug": slug}).Decode(&post); err != nil {
		if pkg.IsNoDocumentsError(err) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post by slug: %w", err)
	}
	return &post, nil
}

func (r *Repo) SlugExists(ctx context.Context, slug string, excludeID primitive.ObjectID) (bool, error) {
	filter := bson.M{"slug": slug}
	if !excludeID.IsZero() {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	count, err := r.posts.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("count posts by slug: %w", err)
	}
	return count > 0, nil
}

func (r *Repo) List(ctx context.Context, params ListParams) (_ *PostsPage, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	filter := listFilter(params)

	total, err := r.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}

	sortField, ok := listSortFields[params.SortBy]
	if !ok {
		sortField = "createdAt"
	}
	sortDir := -1
	if params.SortOrder == "asc" {
		sortDir = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: sortDir}}).
		SetSkip(int64((params.Page - 1) * params.Limit)).
		SetLimit(int64(params.Limit))

	cursor, err := r.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}

	posts := []*Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	totalPages := int((total + int64(params.Limit) - 1) / int64(params.Limit))
	return &PostsPage{
		Posts: posts,
		Pagination: Pagination{
			Page:       params.Page,
			Limit:      params.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    params.Page < totalPages,
			HasPrev:    params.Page > 1,
		},
	}, nil
}

func listFilter(params ListParams) bson.M {
	filter := bson.M{}
	if params.Query != "" {
		quoted := regexp.QuoteMeta(params.Query)
		regex := bson.M{"$regex": quoted, "$options": "i"}
		filter["$or"] = []bson.M{
			{"title": regex},
			{"excerpt": regex},
			{"content": regex},
		}
	}
	if params.CategorySlug != "" {
		filter["category.slug"] = params.CategorySlug
	}
	if len(params.Tags) > 0 {
		filter["tags.name"] = bson.M{"$in": params.Tags}
	}
	if params.Status != "" {
		filter["status"] = params.Status
	}
	if params.AuthorEmail != "" {
		filter["author.email"] = params.AuthorEmail
	}
	if params.Featured != nil {
		filter["featured"] = *params.Featured
	}
	if params.DateFrom != nil || params.DateTo != nil {
		createdAt := bson.M{}
		if params.DateFrom != nil {
			createdAt["$gte"] = *params.DateFrom
		}
		if params.DateTo != nil {
			createdAt["$lte"] = *params.DateTo
		}
		filter["createdAt"] = createdAt
	}
	return filter
}

func (r *Repo) Featured(ctx context.Context, limit int) ([]*Post, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "publishedAt", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.posts.Find(ctx, bson.M{
		"featured": true,
		"status":   StatusPublished,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("find featured posts: %w", err)
	}
	posts := []*Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode featured posts: %w", err)
	}
	return posts, nil
}

// Related returns published posts sharing the category or at least one tag
// with the given post, newest first.
func (r *Repo) Related(ctx context.Context, post *Post, limit int) ([]*Post, error) {
	if limit <= 0 {
		limit = relatedPostsDefaultLimit
	}

	or := []bson.M{{"category._id": post.Category.ID}}
	if len(post.Tags) > 0 {
		tagNames := make([]string, 0, len(post.Tags))
		for _, t := range post.Tags {
			tagNames = append(tagNames, t.Name)
		}
		or = append(or, bson.M{"tags.name": bson.M{"$in": tagNames}})
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "publishedAt", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.posts.Find(ctx, bson.M{
		"_id":    bson.M{"$ne": post.ID},
		"status": StatusPublished,
		"$or":    or,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("find related posts: %w", err)
	}

	posts := []*Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode related posts: %w", err)
	}
	return posts, nil
}

func (r *Repo) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.posts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}})
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

// ToggleLike adjusts the like counter by +1 or -1 and returns the new value.
// There is no per-user dedup, repeated unlikes can push the counter below
// zero.
func (r *Repo) ToggleLike(ctx context.Context, id primitive.ObjectID, like bool) (int, error) {
	delta := 1
	if !like {
		delta = -1
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post Post
	err := r.posts.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"likes": delta}},
		opts,
	).Decode(&post)
	if err != nil {
		if pkg.IsNoDocumentsError(err) {
			return 0, ErrPostNotFound
		}
		return 0, fmt.Errorf("toggle like: %w", err)
	}
	return post.Likes, nil
}

func (r *Repo) CountAll(ctx context.Context) (int64, error) {
	count, err := r.posts.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

func (r *Repo) CountByStatus(ctx context.Context, status Status) (int64, error) {
	count, err := r.posts.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, fmt.Errorf("count posts by status: %w", err)
	}
	return count, nil
}

// CountByCategoryID reports how many posts reference the category. Used by
// the categories handler before allowing a category delete.
func (r *Repo) CountByCategoryID(ctx context.Context, categoryID primitive.ObjectID) (int64, error) {
	count, err := r.posts.CountDocuments(ctx, bson.M{"category._id": categoryID})
	if err != nil {
		return 0, fmt.Errorf("count posts by category: %w", err)
	}
	return count, nil
}

func (r *Repo) TotalViewsAndLikes(ctx context.Context) (views, likes int64, err error) {
	cursor, err := r.posts.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"views": bson.M{"$sum": "$views"},
			"likes": bson.M{"$sum": "$likes"},
		}}},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("aggregate views and likes: %w", err)
	}

	var results []struct {
		Views int64 `bson:"views"`
		Likes int64 `bson:"likes"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, 0, fmt.Errorf("decode views and likes: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, nil
	}
	return results[0].Views, results[0].Likes, nil
}

func (r *Repo) DeleteAll(ctx context.Context) error {
	if _, err := r.posts.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("delete all posts: %w", err)
	}
	if _, err := r.comments.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("delete all comments: %w", err)
	}
	return nil
}
