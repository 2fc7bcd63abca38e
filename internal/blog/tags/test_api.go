package tags

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/techieonvacation/renderwise-backend/internal/textutil"
)

// TestApi is an in-memory tag store used in tests instead of a real mongo
// collection.
type TestApi struct {
	mutex sync.RWMutex
	tags  map[string]*Tag // keyed by name
	// usage count per tag name, set by tests to drive Popular
	Usage map[string]int64
}

func NewTagsTestApi() *TestApi {
	return &TestApi{
		tags:  make(map[string]*Tag),
		Usage: make(map[string]int64),
	}
}

func (api *TestApi) GetOrCreate(_ context.Context, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTagNameEmpty
	}

	api.mutex.Lock()
	defer api.mutex.Unlock()

	if existing, ok := api.tags[name]; ok {
		return existing, nil
	}

	tag := &Tag{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Slug:      textutil.GenerateSlug(name),
		CreatedAt: time.Now().UTC(),
	}
	api.tags[name] = tag
	return tag, nil
}

func (api *TestApi) List(_ context.Context) ([]*Tag, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	all := make([]*Tag, 0, len(api.tags))
	for _, tag := range api.tags {
		all = append(all, tag)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (api *TestApi) Popular(_ context.Context, limit int) ([]*PopularTag, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	var popular []*PopularTag
	for name, count := range api.Usage {
		tag, ok := api.tags[name]
		if !ok {
			continue
		}
		popular = append(popular, &PopularTag{Tag: *tag, Count: count})
	}
	sort.Slice(popular, func(i, j int) bool {
		if popular[i].Count != popular[j].Count {
			return popular[i].Count > popular[j].Count
		}
		return popular[i].Name < popular[j].Name
	})
	if limit > 0 && len(popular) > limit {
		popular = popular[:limit]
	}
	return popular, nil
}

func (api *TestApi) Count(_ context.Context) (int64, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()
	return int64(len(api.tags)), nil
}

func (api *TestApi) DeleteAll(_ context.Context) error {
	api.mutex.Lock()
	defer api.mutex.Unlock()
	api.tags = make(map[string]*Tag)
	api.Usage = make(map[string]int64)
	return nil
}
