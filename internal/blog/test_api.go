package blog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestApi is an in-memory post store used in tests instead of a real mongo
// collection. Filtering and sorting mirror the repo semantics closely enough
// for handler and service tests.
type TestApi struct {
	mutex sync.RWMutex
	posts map[primitive.ObjectID]*Post
}

func NewBlogTestApi() *TestApi {
	return &TestApi{
		posts: make(map[primitive.ObjectID]*Post),
	}
}

func (api *TestApi) Insert(_ context.Context, post *Post) error {
	api.mutex.Lock()
	defer api.mutex.Unlock()

	for _, p := range api.posts {
		if p.Slug == post.Slug {
			return ErrSlugTaken
		}
	}

	post.ID = primitive.NewObjectID()
	api.posts[post.ID] = post
	return nil
}

func (api *TestApi) Save(_ context.Context, post *Post) error {
	api.mutex.Lock()
	defer api.mutex.Unlock()

	if _, ok := api.posts[post.ID]; !ok {
		return ErrPostNotFound
	}
	for id, p := range api.posts {
		if id != post.ID && p.Slug == post.Slug {
			return ErrSlugTaken
		}
	}
	api.posts[post.ID] = post
	return nil
}

func (api *TestApi) Delete(_ context.Context, id primitive.ObjectID) error {
	api.mutex.Lock()
	defer api.mutex.Unlock()

	if _, ok := api.posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(api.posts, id)
	return nil
}

func (api *TestApi) GetByID(_ context.Context, id primitive.ObjectID) (*Post, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	post, ok := api.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	// a copy, like a fresh decode from the database
	copied := *post
	return &copied, nil
}

func (api *TestApi) GetBySlug(_ context.Context, slug string) (*Post, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	for _, post := range api.posts {
		if post.Slug == slug {
			copied := *post
			return &copied, nil
		}
	}
	return nil, ErrPostNotFound
}

func (api *TestApi) SlugExists(_ context.Context, slug string, excludeID primitive.ObjectID) (bool, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	for id, post := range api.posts {
		if id != excludeID && post.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (api *TestApi) List(_ context.Context, params ListParams) (*PostsPage, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	matched := []*Post{}
	for _, post := range api.posts {
		if matchesListParams(post, params) {
			matched = append(matched, post)
		}
	}

	sortPosts(matched, params.SortBy, params.SortOrder)

	total := int64(len(matched))
	totalPages := int((total + int64(params.Limit) - 1) / int64(params.Limit))
	start := (params.Page - 1) * params.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + params.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return &PostsPage{
		Posts: matched[start:end],
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

func matchesListParams(post *Post, params ListParams) bool {
	if params.Query != "" {
		query := strings.ToLower(params.Query)
		if !strings.Contains(strings.ToLower(post.Title), query) &&
			!strings.Contains(strings.ToLower(post.Excerpt), query) &&
			!strings.Contains(strings.ToLower(post.Content), query) {
			return false
		}
	}
	if params.CategorySlug != "" && post.Category.Slug != params.CategorySlug {
		return false
	}
	if len(params.Tags) > 0 && !hasAnyTag(post, params.Tags) {
		return false
	}
	if params.Status != "" && post.Status != params.Status {
		return false
	}
	if params.AuthorEmail != "" && post.Author.Email != params.AuthorEmail {
		return false
	}
	if params.Featured != nil && post.Featured != *params.Featured {
		return false
	}
	if params.DateFrom != nil && post.CreatedAt.Before(*params.DateFrom) {
		return false
	}
	if params.DateTo != nil && post.CreatedAt.After(*params.DateTo) {
		return false
	}
	return true
}

func hasAnyTag(post *Post, names []string) bool {
	for _, name := range names {
		for _, tag := range post.Tags {
			if tag.Name == name {
				return true
			}
		}
	}
	return false
}

func sortPosts(posts []*Post, sortBy, sortOrder string) {
	less := func(i, j int) bool {
		switch sortBy {
		case "title":
			return posts[i].Title < posts[j].Title
		case "views":
			return posts[i].Views < posts[j].Views
		case "likes":
			return posts[i].Likes < posts[j].Likes
		case "publishedAt":
			pi, pj := posts[i].PublishedAt, posts[j].PublishedAt
			switch {
			case pi == nil:
				return pj != nil
			case pj == nil:
				return false
			default:
				return pi.Before(*pj)
			}
		default:
			return posts[i].CreatedAt.Before(posts[j].CreatedAt)
		}
	}
	if sortOrder == "asc" {
		sort.SliceStable(posts, less)
	} else {
		sort.SliceStable(posts, func(i, j int) bool { return less(j, i) })
	}
}

func (api *TestApi) Featured(_ context.Context, limit int) ([]*Post, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	featured := []*Post{}
	for _, post := range api.posts {
		if post.Featured && post.Status == StatusPublished {
			featured = append(featured, post)
		}
	}
	sortPosts(featured, "publishedAt", "desc")
	if len(featured) > limit {
		featured = featured[:limit]
	}
	return featured, nil
}

func (api *TestApi) Related(_ context.Context, source *Post, limit int) ([]*Post, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	sourceTags := make([]string, 0, len(source.Tags))
	for _, tag := range source.Tags {
		sourceTags = append(sourceTags, tag.Name)
	}

	related := []*Post{}
	for _, post := range api.posts {
		if post.ID == source.ID || post.Status != StatusPublished {
			continue
		}
		if post.Category.ID == source.Category.ID || hasAnyTag(post, sourceTags) {
			related = append(related, post)
		}
	}
	sortPosts(related, "publishedAt", "desc")
	if len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}

func (api *TestApi) IncrementViews(_ context.Context, id primitive.ObjectID) error {
	api.mutex.Lock()
	defer api.mutex.Unlock()

	post, ok := api.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	post.Views++
	return nil
}

func (api *TestApi) ToggleLike(_ context.Context, id primitive.ObjectID, like bool) (int, error) {
	api.mutex.Lock()
	defer api.mutex.Unlock()

	post, ok := api.posts[id]
	if !ok {
		return 0, ErrPostNotFound
	}
	if like {
		post.Likes++
	} else {
		post.Likes--
	}
	return post.Likes, nil
}

func (api *TestApi) CountAll(_ context.Context) (int64, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()
	return int64(len(api.posts)), nil
}

func (api *TestApi) CountByStatus(_ context.Context, status Status) (int64, error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	var count int64
	for _, post := range api.posts {
		if post.Status == status {
			count++
		}
	}
	return count, nil
}

func (api *TestApi) TotalViewsAndLikes(_ context.Context) (views, likes int64, err error) {
	api.mutex.RLock()
	defer api.mutex.RUnlock()

	for _, post := range api.posts {
		views += int64(post.Views)
		likes += int64(post.Likes)
	}
	return views, likes, nil
}

func (api *TestApi) DeleteAll(_ context.Context) error {
	api.mutex.Lock()
	defer api.mutex.Unlock()
	api.posts = make(map[primitive.ObjectID]*Post)
	return nil
}
