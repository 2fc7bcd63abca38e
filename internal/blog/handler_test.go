package blog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techieonvacation/renderwise-backend/internal/blog/categories"
	"github.com/techieonvacation/renderwise-backend/internal/blog/tags"
	"github.com/techieonvacation/renderwise-backend/internal/telemetry/metrics"
	"github.com/techieonvacation/renderwise-backend/pkg"
)

func blogHandlerTestSetup(t *testing.T) (*Service, *mux.Router, *categories.Category) {
	t.Helper()

	postsApi := NewBlogTestApi()
	categoriesApi := categories.NewCategoriesTestApi()
	tagsApi := tags.NewTagsTestApi()

	category, err := categoriesApi.Create(context.Background(), categories.CategoryInput{
		Name: "Engineering",
	})
	require.NoError(t, err)

	service := NewService(postsApi, categoriesApi, tagsApi)

	r := mux.NewRouter()
	NewHandler(service, metrics.NewTestManager(), true).SetupRoutes(r)
	return service, r, category
}

func createTestPost(t *testing.T, service *Service, category *categories.Category, title string, status Status) *Post {
	t.Helper()
	post, err := service.Create(context.Background(), PostInput{
		Title:      title,
		Content:    testPostContent,
		Author:     Author{Name: "Mika", Email: "mika@renderwise.io"},
		CategoryID: category.ID.Hex(),
		Tags:       []string{"golang"},
		Status:     status,
	})
	require.NoError(t, err)
	return post
}

func TestNewBlogHandler_Routes(t *testing.T) {
	service, r, category := blogHandlerTestSetup(t)
	post := createTestPost(t, service, category, "Route Fixture", StatusPublished)
	id := post.ID.Hex()

	for caseName, route := range map[string]struct {
		name   string
		path   string
		method string
	}{
		"list-posts":       {name: "list-posts", path: "/blog", method: "GET"},
		"new-post":         {name: "new-post", path: "/blog", method: "POST"},
		"blog-stats":       {name: "blog-stats", path: "/blog/stats", method: "GET"},
		"test-setup-info":  {name: "test-setup-info", path: "/blog/test-setup", method: "GET"},
		"test-setup":       {name: "test-setup", path: "/blog/test-setup", method: "POST"},
		"get-post-by-slug": {name: "get-post-by-slug", path: "/blog/slug/" + post.Slug, method: "GET"},
		"toggle-post-like": {name: "toggle-post-like", path: "/blog/slug/" + post.Slug, method: "POST"},
		"get-post":         {name: "get-post", path: "/blog/" + id, method: "GET"},
		"update-post":      {name: "update-post", path: "/blog/" + id, method: "PUT"},
		"delete-post":      {name: "delete-post", path: "/blog/" + id, method: "DELETE"},
	} {
		t.Run(caseName, func(t *testing.T) {
			req, err := http.NewRequest(route.method, route.path, nil)
			require.NoError(t, err)

			routeMatch := &mux.RouteMatch{}
			muxRoute := r.Get(route.name)
			require.NotNil(t, muxRoute)
			assert.True(t, muxRoute.Match(req, routeMatch), caseName)
		})
	}
}

func TestBlogHandler_handleList(t *testing.T) {
	service, r, category := blogHandlerTestSetup(t)
	createTestPost(t, service, category, "First Published Post", StatusPublished)
	createTestPost(t, service, category, "Second Published Post", StatusPublished)
	createTestPost(t, service, category, "A Quiet Draft", StatusDraft)

	req, err := http.NewRequest("GET", "/blog?status=published", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Cache-Control"), "max-age")

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	var page PostsPage
	remarshalData(t, resp.Data, &page)
	assert.Len(t, page.Posts, 2)
	assert.Equal(t, int64(2), page.Pagination.Total)
}

func TestBlogHandler_handleList_badParams(t *testing.T) {
	_, r, _ := blogHandlerTestSetup(t)

	req, err := http.NewRequest("GET", "/blog?status=bogus&page=zero", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Details, "status")
	assert.Contains(t, resp.Details, "page")
}

func TestBlogHandler_handleCreate(t *testing.T) {
	_, r, category := blogHandlerTestSetup(t)

	body := fmt.Sprintf(`{
		"title": "Shipped From The Api",
		"content": %q,
		"author": {"name": "Mika", "email": "mika@renderwise.io"},
		"categoryId": %q,
		"tags": ["release"],
		"status": "published"
	}`, testPostContent, category.ID.Hex())

	req, err := http.NewRequest("POST", "/blog", strings.NewReader(body))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	var post Post
	remarshalData(t, resp.Data, &post)
	assert.Equal(t, "shipped-from-the-api", post.Slug)
	assert.NotNil(t, post.PublishedAt)
}

func TestBlogHandler_handleCreate_validation(t *testing.T) {
	_, r, _ := blogHandlerTestSetup(t)

	req, err := http.NewRequest("POST", "/blog", strings.NewReader(`{
		"title": "ab",
		"content": "too short",
		"author": {"name": "", "email": ""}
	}`))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	for _, field := range []string{"title", "content", "author.name", "author.email", "categoryId"} {
		assert.Contains(t, resp.Details, field)
	}
}

func TestBlogHandler_handleCreate_duplicateSlug(t *testing.T) {
	service, r, category := blogHandlerTestSetup(t)
	createTestPost(t, service, category, "Taken Title", StatusPublished)

	body := fmt.Sprintf(`{
		"title": "Taken Title",
		"content": %q,
		"author": {"name": "Mika", "email": "mika@renderwise.io"},
		"categoryId": %q
	}`, testPostContent, category.ID.Hex())

	req, err := http.NewRequest("POST", "/blog", strings.NewReader(body))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestBlogHandler_handleGetBySlug(t *testing.T) {
	service, r, category := blogHandlerTestSetup(t)
	post := createTestPost(t, service, category, "Slugged Post", StatusPublished)
	createTestPost(t, service, category, "Related Post", StatusPublished)

	req, err := http.NewRequest("GET", "/blog/slug/"+post.Slug, nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	var data struct {
		Post    *Post   `json:"post"`
		Related []*Post `json:"related"`
	}
	remarshalData(t, resp.Data, &data)
	require.NotNil(t, data.Post)
	assert.Equal(t, 1, data.Post.Views)
	require.Len(t, data.Related, 1)
	assert.Equal(t, "Related Post", data.Related[0].Title)
}

func TestBlogHandler_handleGetBySlug_notFound(t *testing.T) {
	_, r, _ := blogHandlerTestSetup(t)

	req, err := http.NewRequest("GET", "/blog/slug/no-such-post", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBlogHandler_handleToggleLike(t *testing.T) {
	service, r, category := blogHandlerTestSetup(t)
	post := createTestPost(t, service, category, "Like Target", StatusPublished)

	doAction := func(action string) *httptest.ResponseRecorder {
		body := fmt.Sprintf(`{"action": %q}`, action)
		req, err := http.NewRequest("POST", "/blog/slug/"+post.Slug, strings.NewReader(body))
		require.NoError(t, err)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	rr := doAction("like")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	var data struct {
		Likes int `json:"likes"`
	}
	remarshalData(t, resp.Data, &data)
	assert.Equal(t, 1, data.Likes)

	rr = doAction("unlike")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	remarshalData(t, resp.Data, &data)
	assert.Equal(t, 0, data.Likes)

	rr = doAction("boost")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBlogHandler_handleUpdateAndDelete(t *testing.T) {
	service, r, category := blogHandlerTestSetup(t)
	post := createTestPost(t, service, category, "Editable Post", StatusDraft)

	req, err := http.NewRequest("PUT", "/blog/"+post.ID.Hex(), strings.NewReader(`{
		"status": "published"
	}`))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	var updated Post
	remarshalData(t, resp.Data, &updated)
	assert.Equal(t, StatusPublished, updated.Status)
	assert.NotNil(t, updated.PublishedAt)

	req, err = http.NewRequest("DELETE", "/blog/"+post.ID.Hex(), nil)
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req, err = http.NewRequest("GET", "/blog/"+post.ID.Hex(), nil)
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBlogHandler_handleGet_badID(t *testing.T) {
	_, r, _ := blogHandlerTestSetup(t)

	req, err := http.NewRequest("GET", "/blog/not-a-hex-id", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.Details, "id")
}

func TestBlogHandler_handleStats(t *testing.T) {
	service, r, category := blogHandlerTestSetup(t)
	createTestPost(t, service, category, "Stat Post One", StatusPublished)
	createTestPost(t, service, category, "Stat Post Two", StatusDraft)

	req, err := http.NewRequest("GET", "/blog/stats", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	var stats Stats
	remarshalData(t, resp.Data, &stats)
	assert.Equal(t, int64(2), stats.TotalPosts)
	assert.Equal(t, int64(1), stats.PublishedPosts)
	assert.Equal(t, int64(1), stats.DraftPosts)
}

func TestBlogHandler_testSetup(t *testing.T) {
	_, r, _ := blogHandlerTestSetup(t)

	req, err := http.NewRequest("POST", "/blog/test-setup", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req, err = http.NewRequest("GET", "/blog/test-setup", nil)
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	var stats Stats
	remarshalData(t, resp.Data, &stats)
	assert.Equal(t, int64(seedPostsCount), stats.TotalPosts)
}

func TestBlogHandler_testSetupDisabled(t *testing.T) {
	postsApi := NewBlogTestApi()
	service := NewService(postsApi, categories.NewCategoriesTestApi(), tags.NewTagsTestApi())

	r := mux.NewRouter()
	NewHandler(service, metrics.NewTestManager(), false).SetupRoutes(r)

	req, err := http.NewRequest("POST", "/blog/test-setup", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

// remarshalData decodes the untyped envelope data into a concrete type.
func remarshalData(t *testing.T, data interface{}, target interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, target))
}
