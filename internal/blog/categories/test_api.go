package categories

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/techieonvacation/renderwise-backend/internal/textutil"
)

// TestApi is an in-memory category store used in tests instead of a real
// mongo collection.
type TestApi struct {
	mutex      sync.RWMutex
	categories map[primitive.ObjectID]*Category
	// posts-per-category counts, set by tests to drive Delete refchecks
	PostsPerCategory map[primitive.ObjectID]int64
}

func NewCategoriesTestApi() *TestApi {
	return &TestApi{
		categories:       make(map[primitive.ObjectID]*Category),
		PostsPerCategory: make(map[primitive.ObjectID]int64),
	}
}

func (api *TestApi) Create(_ context.Context, input CategoryInput) (*Category, error) {
	api.mutex.Lock()
	defer api.mutex.Unlock()

	slug := input.Slug
	if slug == "" {
		slug = textutil.GenerateSlug(input.Name)
	}
	for _, c := range api.categories {
		if c.Slug == slug {
			return nil, ErrSlugTaken
		}
	}

	now := time.Now().UTC()
	category := &Category{
		ID:          primitive.NewObjectID(),
		Name:        input.Name,
		Slug:        slug,
		Description: input.Description,
		Color:       input.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	api.categories[category.ID] = category
	return category, nil
}

func (api *TestApi) Update(_ context.Context, id primitive.ObjectID, update CategoryUpdate) (*Category, error) {
	api.mutex.Lock()
	defer api.mutex.Unlock()

	existing, ok := api.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}

	if update.Name != nil {
		existing.Name = *update.Name
		if update.Slug == nil {
			existing.Slug = textutil.GenerateSlug(*update.Name)
		}
	}
	if update.Slug != nil {
		existing.Slug = *update.Slug
	}
	if update.Name != nil || update.Slug != nil {
		for otherID, c := range api.categories {
			if otherID != id && c.Slug == existing.Slug {
				return nil, ErrSlugTaken
			}
		}
	}
	if update.Description != nil {
		existing.Description = *update.Description
	}
	if update.Color != nil {
		existing.Color = *update.Color
	}
	existing.UpdatedAt = time.Now().UTC()

	return existing, nil
}

func (api *TestApi) Delete(_ context.Context, id primitive.ObjectID) error {
	api.mutex.Lock()
	defer api.mutex.Unlock()

	if _, ok := api.categories[id]; !ok {
		return ErrCategoryNotFound
	}
	if count := api.PostsPerCategory[id]; count > 0 {
		return &CategoryInUseError{PostsCount: count}
	}

	delete(api.categories, id)
	return nil
}

func (api *TestApi) List(_ context.Context) ([]*Category, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	all := make([]*Category, 0, len(api.categories))
	for _, category := range api.categories {
		all = append(all, category)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (api *TestApi) GetByID(_ context.Context, id primitive.ObjectID) (*Category, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	category, ok := api.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return category, nil
}

func (api *TestApi) GetBySlug(_ context.Context, slug string) (*Category, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	for _, category := range api.categories {
		if category.Slug == slug {
			return category, nil
		}
	}
	return nil, ErrCategoryNotFound
}

func (api *TestApi) Count(_ context.Context) (int64, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()
	return int64(len(api.categories)), nil
}

func (api *TestApi) DeleteAll(_ context.Context) error {
	api.mutex.Lock()
	defer api.mutex.Unlock()
	api.categories = make(map[primitive.ObjectID]*Category)
	api.PostsPerCategory = make(map[primitive.ObjectID]int64)
	return nil
}
