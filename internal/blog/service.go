package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/techieonvacation/renderwise-backend/internal/blog/categories"
	"github.com/techieonvacation/renderwise-backend/internal/blog/tags"
	"github.com/techieonvacation/renderwise-backend/internal/telemetry/tracing"
	"github.com/techieonvacation/renderwise-backend/internal/textutil"
)

type postRepo interface {
	Insert(ctx context.Context, post *Post) error
	Save(ctx context.Context, post *Post) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*Post, error)
	GetBySlug(ctx context.Context, slug string) (*Post, error)
	SlugExists(ctx context.Context, slug string, excludeID primitive.ObjectID) (bool, error)
	List(ctx context.Context, params ListParams) (*PostsPage, error)
	Featured(ctx context.Context, limit int) ([]*Post, error)
	Related(ctx context.Context, post *Post, limit int) ([]*Post, error)
	IncrementViews(ctx context.Context, id primitive.ObjectID) error
	ToggleLike(ctx context.Context, id primitive.ObjectID, like bool) (int, error)
	CountAll(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
	TotalViewsAndLikes(ctx context.Context) (views, likes int64, err error)
	DeleteAll(ctx context.Context) error
}

type categoryStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*categories.Category, error)
	GetBySlug(ctx context.Context, slug string) (*categories.Category, error)
	Create(ctx context.Context, input categories.CategoryInput) (*categories.Category, error)
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
}

type tagStore interface {
	GetOrCreate(ctx context.Context, name string) (*tags.Tag, error)
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
}

// PostInput is the payload for creating a post.
type PostInput struct {
	Title         string     `json:"title"`
	Slug          string     `json:"slug,omitempty"`
	Excerpt       string     `json:"excerpt,omitempty"`
	Content       string     `json:"content"`
	FeaturedImage string     `json:"featuredImage,omitempty"`
	Author        Author     `json:"author"`
	CategoryID    string     `json:"categoryId"`
	Tags          []string   `json:"tags,omitempty"`
	Status        Status     `json:"status,omitempty"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	ScheduledAt   *time.Time `json:"scheduledAt,omitempty"`
	SEO           *SEO       `json:"seo,omitempty"`
	Featured      *bool      `json:"featured,omitempty"`
	AllowComments *bool      `json:"allowComments,omitempty"`
}

// PostUpdate carries partial updates, nil means "not supplied".
type PostUpdate struct {
	Title         *string    `json:"title,omitempty"`
	Slug          *string    `json:"slug,omitempty"`
	Excerpt       *string    `json:"excerpt,omitempty"`
	Content       *string    `json:"content,omitempty"`
	FeaturedImage *string    `json:"featuredImage,omitempty"`
	Author        *Author    `json:"author,omitempty"`
	CategoryID    *string    `json:"categoryId,omitempty"`
	Tags          *[]string  `json:"tags,omitempty"`
	Status        *Status    `json:"status,omitempty"`
	ScheduledAt   *time.Time `json:"scheduledAt,omitempty"`
	SEO           *SEOUpdate `json:"seo,omitempty"`
	Featured      *bool      `json:"featured,omitempty"`
	AllowComments *bool      `json:"allowComments,omitempty"`
}

// SEOUpdate merges per field so a partial seo object does not wipe the rest.
type SEOUpdate struct {
	MetaTitle       *string   `json:"metaTitle,omitempty"`
	MetaDescription *string   `json:"metaDescription,omitempty"`
	Keywords        *[]string `json:"keywords,omitempty"`
	OGTitle         *string   `json:"ogTitle,omitempty"`
	OGDescription   *string   `json:"ogDescription,omitempty"`
	OGImage         *string   `json:"ogImage,omitempty"`
	CanonicalURL    *string   `json:"canonicalUrl,omitempty"`
}

type Service struct {
	repo       postRepo
	categories categoryStore
	tags       tagStore
}

func NewService(repo postRepo, categories categoryStore, tags tagStore) *Service {
	return &Service{
		repo:       repo,
		categories: categories,
		tags:       tags,
	}
}

func (s *Service) Create(ctx context.Context, input PostInput) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogService.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	slug := input.Slug
	if slug == "" {
		slug = textutil.GenerateSlug(input.Title)
	}
	taken, err := s.repo.SlugExists(ctx, slug, primitive.NilObjectID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlugTaken
	}

	category, err := s.resolveCategory(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}

	tagSnapshots, err := s.resolveTags(ctx, input.Tags)
	if err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = StatusDraft
	}

	excerpt := input.Excerpt
	if excerpt == "" {
		excerpt = textutil.ExtractExcerpt(input.Content, textutil.DefaultExcerptLength)
	}

	now := time.Now()
	post := &Post{
		Title:         input.Title,
		Slug:          slug,
		Excerpt:       excerpt,
		Content:       input.Content,
		FeaturedImage: input.FeaturedImage,
		Author:        input.Author,
		Category:      category,
		Tags:          tagSnapshots,
		Status:        status,
		ScheduledAt:   input.ScheduledAt,
		ReadingTime:   textutil.CalculateReadingTime(input.Content),
		AllowComments: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == StatusPublished {
		post.PublishedAt = &now
		if input.PublishedAt != nil {
			post.PublishedAt = input.PublishedAt
		}
	}
	if input.SEO != nil {
		post.SEO = *input.SEO
	}
	if input.Featured != nil {
		post.Featured = *input.Featured
	}
	if input.AllowComments != nil {
		post.AllowComments = *input.AllowComments
	}

	if err := s.repo.Insert(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *Service) Update(ctx context.Context, id primitive.ObjectID, update PostUpdate) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogService.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if update.Title != nil {
		post.Title = *update.Title
		// an explicit slug in the same request wins over the regenerated one
		if update.Slug == nil {
			post.Slug = textutil.GenerateSlug(*update.Title)
		}
	}
	if update.Slug != nil {
		post.Slug = *update.Slug
	}
	if update.Title != nil || update.Slug != nil {
		taken, err := s.repo.SlugExists(ctx, post.Slug, post.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrSlugTaken
		}
	}
	if update.Content != nil {
		post.Content = *update.Content
		post.ReadingTime = textutil.CalculateReadingTime(*update.Content)
		contentChanged = true
	}
	if update.Excerpt != nil {
		post.Excerpt = *update.Excerpt
	} else if contentChanged {
		post.Excerpt = textutil.ExtractExcerpt(post.Content, textutil.DefaultExcerptLength)
	}
	if update.FeaturedImage != nil {
		post.FeaturedImage = *update.FeaturedImage
	}
	if update.Author != nil {
		post.Author = *update.Author
	}
	if update.CategoryID != nil {
		category, err := s.resolveCategory(ctx, *update.CategoryID)
		if err != nil {
			return nil, err
		}
		post.Category = category
	}
	if update.Tags != nil {
		tagSnapshots, err := s.resolveTags(ctx, *update.Tags)
		if err != nil {
			return nil, err
		}
		post.Tags = tagSnapshots
	}
	if update.Status != nil {
		post.Status = *update.Status
		// publishedAt is stamped once, re-publishing keeps the original date
		if post.Status == StatusPublished && post.PublishedAt == nil {
			now := time.Now()
			post.PublishedAt = &now
		}
	}
	if update.ScheduledAt != nil {
		post.ScheduledAt = update.ScheduledAt
	}
	if update.SEO != nil {
		mergeSEO(&post.SEO, update.SEO)
	}
	if update.Featured != nil {
		post.Featured = *update.Featured
	}
	if update.AllowComments != nil {
		post.AllowComments = *update.AllowComments
	}

	post.UpdatedAt = time.Now()

	if err := s.repo.Save(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func mergeSEO(seo *SEO, update *SEOUpdate) {
	if update.MetaTitle != nil {
		seo.MetaTitle = *update.MetaTitle
	}
	if update.MetaDescription != nil {
		seo.MetaDescription = *update.MetaDescription
	}
	if update.Keywords != nil {
		seo.Keywords = *update.Keywords
	}
	if update.OGTitle != nil {
		seo.OGTitle = *update.OGTitle
	}
	if update.OGDescription != nil {
		seo.OGDescription = *update.OGDescription
	}
	if update.OGImage != nil {
		seo.OGImage = *update.OGImage
	}
	if update.CanonicalURL != nil {
		seo.CanonicalURL = *update.CanonicalURL
	}
}

func (s *Service) resolveCategory(ctx context.Context, categoryID string) (CategorySnapshot, error) {
	id, err := primitive.ObjectIDFromHex(categoryID)
	if err != nil {
		return CategorySnapshot{}, ErrInvalidCategory
	}
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, categories.ErrCategoryNotFound) {
			return CategorySnapshot{}, ErrInvalidCategory
		}
		return CategorySnapshot{}, err
	}
	return CategorySnapshot{
		ID:    category.ID,
		Name:  category.Name,
		Slug:  category.Slug,
		Color: category.Color,
	}, nil
}

func (s *Service) resolveTags(ctx context.Context, names []string) ([]TagSnapshot, error) {
	snapshots := []TagSnapshot{}
	seen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true

		tag, err := s.tags.GetOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, TagSnapshot{
			ID:   tag.ID,
			Name: tag.Name,
			Slug: tag.Slug,
		})
	}
	return snapshots, nil
}

func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) GetByID(ctx context.Context, id primitive.ObjectID) (*Post, error) {
	return s.repo.GetByID(ctx, id)
}

// GetBySlug returns the post plus its related posts. For published posts the
// view counter is bumped first so the returned post already carries the new
// count. Every GET counts, there is no per visitor dedup.
func (s *Service) GetBySlug(ctx context.Context, slug string) (_ *Post, related []*Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogService.getBySlug")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	post, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}

	if post.Status == StatusPublished {
		if err := s.repo.IncrementViews(ctx, post.ID); err != nil {
			return nil, nil, err
		}
		post.Views++
	}

	related, err = s.repo.Related(ctx, post, relatedPostsDefaultLimit)
	if err != nil {
		return nil, nil, err
	}
	return post, related, nil
}

func (s *Service) List(ctx context.Context, params ListParams) (*PostsPage, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) Featured(ctx context.Context, limit int) ([]*Post, error) {
	return s.repo.Featured(ctx, limit)
}

func (s *Service) ToggleLike(ctx context.Context, slug string, like bool) (int, error) {
	post, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return 0, err
	}
	return s.repo.ToggleLike(ctx, post.ID, like)
}

// Stats gathers the dashboard counters. The seven counts are independent, so
// they run in parallel.
func (s *Service) Stats(ctx context.Context) (_ *Stats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogService.stats")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var stats Stats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalPosts, err = s.repo.CountAll(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.PublishedPosts, err = s.repo.CountByStatus(ctx, StatusPublished)
		return err
	})
	g.Go(func() (err error) {
		stats.DraftPosts, err = s.repo.CountByStatus(ctx, StatusDraft)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalCategories, err = s.categories.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalTags, err = s.tags.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalViews, stats.TotalLikes, err = s.repo.TotalViewsAndLikes(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("gather blog stats: %w", err)
	}
	return &stats, nil
}

func (s *Service) ClearAll(ctx context.Context) error {
	if err := s.repo.DeleteAll(ctx); err != nil {
		return err
	}
	if err := s.categories.DeleteAll(ctx); err != nil {
		return err
	}
	return s.tags.DeleteAll(ctx)
}
