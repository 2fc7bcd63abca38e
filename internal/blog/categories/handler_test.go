package categories

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techieonvacation/renderwise-backend/pkg"
)

func categoriesTestSetup(t *testing.T) (*TestApi, *mux.Router, []*Category) {
	t.Helper()

	api := NewCategoriesTestApi()
	ctx := context.Background()

	var created []*Category
	for _, input := range []CategoryInput{
		{Name: "Engineering", Color: "#112233"},
		{Name: "Design", Description: "visual things"},
		{Name: "Company News"},
	} {
		category, err := api.Create(ctx, input)
		require.NoError(t, err)
		created = append(created, category)
	}

	r := mux.NewRouter()
	NewHandler(api).SetupRoutes(r)
	return api, r, created
}

func TestNewCategoriesHandler_Routes(t *testing.T) {
	_, r, created := categoriesTestSetup(t)
	id := created[0].ID.Hex()

	for caseName, route := range map[string]struct {
		name   string
		path   string
		method string
	}{
		"list-categories":  {name: "list-categories", path: "/blog/categories", method: "GET"},
		"new-category":     {name: "new-category", path: "/blog/categories", method: "POST"},
		"get-category":     {name: "get-category", path: "/blog/categories/" + id, method: "GET"},
		"update-category":  {name: "update-category", path: "/blog/categories/" + id, method: "PUT"},
		"delete-category":  {name: "delete-category", path: "/blog/categories/" + id, method: "DELETE"},
		"category-options": {name: "new-category", path: "/blog/categories", method: "OPTIONS"},
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

func TestCategoriesHandler_handleList(t *testing.T) {
	_, r, _ := categoriesTestSetup(t)

	req, err := http.NewRequest("GET", "/blog/categories", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	dataBytes, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var listed []*Category
	require.NoError(t, json.Unmarshal(dataBytes, &listed))
	require.Len(t, listed, 3)
	// sorted by name
	assert.Equal(t, "Company News", listed[0].Name)
	assert.Equal(t, "Design", listed[1].Name)
	assert.Equal(t, "Engineering", listed[2].Name)
}

func TestCategoriesHandler_handleCreate(t *testing.T) {
	_, r, _ := categoriesTestSetup(t)

	body := `{"name":"Open Source","color":"#00ff00"}`
	req, err := http.NewRequest("POST", "/blog/categories", strings.NewReader(body))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	dataBytes, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var category Category
	require.NoError(t, json.Unmarshal(dataBytes, &category))
	assert.Equal(t, "open-source", category.Slug)
	assert.False(t, category.ID.IsZero())
}

func TestCategoriesHandler_handleCreate_Validation(t *testing.T) {
	_, r, _ := categoriesTestSetup(t)

	body := `{"name":"x","color":"green","description":"` + strings.Repeat("d", 201) + `"}`
	req, err := http.NewRequest("POST", "/blog/categories", strings.NewReader(body))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Details, "name")
	assert.Contains(t, resp.Details, "color")
	assert.Contains(t, resp.Details, "description")
}

func TestCategoriesHandler_handleCreate_DuplicateSlug(t *testing.T) {
	_, r, _ := categoriesTestSetup(t)

	// "Engineering" already exists, derived slug collides
	body := `{"name":"Engineering"}`
	req, err := http.NewRequest("POST", "/blog/categories", strings.NewReader(body))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "taken")
}

func TestCategoriesHandler_handleDelete_InUse(t *testing.T) {
	api, r, created := categoriesTestSetup(t)
	blocked := created[0]
	api.PostsPerCategory[blocked.ID] = 7

	req, err := http.NewRequest("DELETE", "/blog/categories/"+blocked.ID.Hex(), nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	// the error reports the exact blocking count
	assert.Contains(t, resp.Error, "7 post(s)")

	// still there
	_, err = api.GetByID(context.Background(), blocked.ID)
	assert.NoError(t, err)
}

func TestCategoriesHandler_handleDelete_Unreferenced(t *testing.T) {
	api, r, created := categoriesTestSetup(t)
	victim := created[1]

	req, err := http.NewRequest("DELETE", "/blog/categories/"+victim.ID.Hex(), nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	_, err = api.GetByID(context.Background(), victim.ID)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCategoriesHandler_handleUpdate_RegeneratesSlug(t *testing.T) {
	_, r, created := categoriesTestSetup(t)
	target := created[2] // "Company News"

	body := `{"name":"Press Releases"}`
	req, err := http.NewRequest("PUT", "/blog/categories/"+target.ID.Hex(), strings.NewReader(body))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	dataBytes, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var category Category
	require.NoError(t, json.Unmarshal(dataBytes, &category))
	assert.Equal(t, "Press Releases", category.Name)
	assert.Equal(t, "press-releases", category.Slug)
}

func TestCategoriesHandler_BadID(t *testing.T) {
	_, r, _ := categoriesTestSetup(t)

	req, err := http.NewRequest("GET", "/blog/categories/not-a-hex-id", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp pkg.ApiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.Details, "id")
}
