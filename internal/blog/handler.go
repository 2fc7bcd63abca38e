package blog

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/techieonvacation/renderwise-backend/internal/telemetry/metrics"
	"github.com/techieonvacation/renderwise-backend/pkg"
)

const (
	listDefaultLimit = 10
	listMaxLimit     = 100
	seedPostsCount   = 20
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

type Handler struct {
	service        *Service
	metricsManager *metrics.Manager
	// test-setup stays off in production
	testSetupEnabled bool
}

func NewHandler(service *Service, metricsManager *metrics.Manager, testSetupEnabled bool) *Handler {
	return &Handler{
		service:          service,
		metricsManager:   metricsManager,
		testSetupEnabled: testSetupEnabled,
	}
}

// SetupRoutes expects the categories and tags routes to be registered before
// this one, otherwise /blog/{id} would swallow them.
func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/blog", handler.handleList).Methods("GET").Name("list-posts")
	router.HandleFunc("/blog", handler.handleCreate).Methods("POST", "OPTIONS").Name("new-post")
	router.HandleFunc("/blog/stats", handler.handleStats).Methods("GET").Name("blog-stats")
	router.HandleFunc("/blog/test-setup", handler.handleTestSetupInfo).Methods("GET").Name("test-setup-info")
	router.HandleFunc("/blog/test-setup", handler.handleTestSetup).Methods("POST", "OPTIONS").Name("test-setup")
	router.HandleFunc("/blog/slug/{slug}", handler.handleGetBySlug).Methods("GET").Name("get-post-by-slug")
	router.HandleFunc("/blog/slug/{slug}", handler.handleToggleLike).Methods("POST", "OPTIONS").Name("toggle-post-like")
	router.HandleFunc("/blog/{id}", handler.handleGet).Methods("GET").Name("get-post")
	router.HandleFunc("/blog/{id}", handler.handleUpdate).Methods("PUT", "OPTIONS").Name("update-post")
	router.HandleFunc("/blog/{id}", handler.handleDelete).Methods("DELETE", "OPTIONS").Name("delete-post")
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=60")

	params, details := listParamsFromQuery(r)
	if len(details) > 0 {
		pkg.WriteValidationErrorJSON(w, details)
		return
	}

	page, err := handler.service.List(r.Context(), params)
	if err != nil {
		log.Errorf("list posts: %s", err)
		pkg.WriteErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}

	pkg.WriteSuccessJSON(w, http.StatusOK, page, "")
}

func listParamsFromQuery(r *http.Request) (ListParams, map[string]string) {
	query := r.URL.Query()
	details := map[string]string{}

	params := ListParams{
		Query:        query.Get("query"),
		CategorySlug: query.Get("category"),
		AuthorEmail:  query.Get("author"),
		Page:         1,
		Limit:        listDefaultLimit,
		SortBy:       query.Get("sortBy"),
		SortOrder:    query.Get("sortOrder"),
	}

	if tagsParam := query.Get("tags"); tagsParam != "" {
		for _, tag := range strings.Split(tagsParam, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				params.Tags = append(params.Tags, tag)
			}
		}
	}

	if statusParam := query.Get("status"); statusParam != "" {
		status := Status(statusParam)
		if !status.Valid() {
			details["status"] = "must be one of: draft, published, archived"
		}
		params.Status = status
	}

	if featuredParam := query.Get("featured"); featuredParam != "" {
		featured, err := strconv.ParseBool(featuredParam)
		if err != nil {
			details["featured"] = "must be a boolean"
		}
		params.Featured = &featured
	}

	if dateFromParam := query.Get("dateFrom"); dateFromParam != "" {
		dateFrom, err := time.Parse(time.RFC3339, dateFromParam)
		if err != nil {
			details["dateFrom"] = "must be an RFC3339 timestamp"
		}
		params.DateFrom = &dateFrom
	}
	if dateToParam := query.Get("dateTo"); dateToParam != "" {
		dateTo, err := time.Parse(time.RFC3339, dateToParam)
		if err != nil {
			details["dateTo"] = "must be an RFC3339 timestamp"
		}
		params.DateTo = &dateTo
	}

	if pageParam := query.Get("page"); pageParam != "" {
		page, err := strconv.Atoi(pageParam)
		if err != nil || page < 1 {
			details["page"] = "must be a positive integer"
		} else {
			params.Page = page
		}
	}
	if limitParam := query.Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 1 {
			details["limit"] = "must be a positive integer"
		} else {
			if limit > listMaxLimit {
				limit = listMaxLimit
			}
			params.Limit = limit
		}
	}

	return params, details
}

func (handler *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input PostInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Errorf("new post, unmarshal json params: %s", err)
		pkg.WriteErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if details := validatePostInput(input); len(details) > 0 {
		pkg.WriteValidationErrorJSON(w, details)
		return
	}

	post, err := handler.service.Create(r.Context(), input)
	if err != nil {
		handler.writeServiceError(w, err)
		return
	}

	log.Tracef("new post %s: [%s] added", post.ID.Hex(), post.Title)

	pkg.WriteSuccessJSON(w, http.StatusCreated, post, "post created")
}

func (handler *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	post, err := handler.service.GetByID(r.Context(), id)
	if err != nil {
		handler.writeServiceError(w, err)
		return
	}

	pkg.WriteSuccessJSON(w, http.StatusOK, post, "")
}

func (handler *Handler) handleGetBySlug(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=60")

	slug := mux.Vars(r)["slug"]

	post, related, err := handler.service.GetBySlug(r.Context(), slug)
	if err != nil {
		handler.writeServiceError(w, err)
		return
	}
	if related == nil {
		related = []*Post{}
	}
	if post.Status == StatusPublished {
		handler.metricsManager.CounterPostViews.Inc()
	}

	pkg.WriteSuccessJSON(w, http.StatusOK, struct {
		Post    *Post   `json:"post"`
		Related []*Post `json:"related"`
	}{post, related}, "")
}

func (handler *Handler) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	var params struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Errorf("toggle like, unmarshal json params: %s", err)
		pkg.WriteErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if params.Action != "like" && params.Action != "unlike" {
		pkg.WriteValidationErrorJSON(w, map[string]string{
			"action": "must be like or unlike",
		})
		return
	}

	likes, err := handler.service.ToggleLike(r.Context(), slug, params.Action == "like")
	if err != nil {
		handler.writeServiceError(w, err)
		return
	}
	handler.metricsManager.CounterPostLikes.Inc()

	pkg.WriteSuccessJSON(w, http.StatusOK, struct {
		Likes int `json:"likes"`
	}{likes}, "")
}

func (handler *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	var update PostUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Errorf("update post, unmarshal json params: %s", err)
		pkg.WriteErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if details := validatePostUpdate(update); len(details) > 0 {
		pkg.WriteValidationErrorJSON(w, details)
		return
	}

	post, err := handler.service.Update(r.Context(), id, update)
	if err != nil {
		handler.writeServiceError(w, err)
		return
	}

	pkg.WriteSuccessJSON(w, http.StatusOK, post, "post updated")
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	if err := handler.service.Delete(r.Context(), id); err != nil {
		handler.writeServiceError(w, err)
		return
	}

	log.Tracef("post %s deleted", id.Hex())

	pkg.WriteSuccessJSON(w, http.StatusOK, nil, "post deleted")
}

func (handler *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := handler.service.Stats(r.Context())
	if err != nil {
		log.Errorf("blog stats: %s", err)
		pkg.WriteErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}

	pkg.WriteSuccessJSON(w, http.StatusOK, stats, "")
}

func (handler *Handler) handleTestSetupInfo(w http.ResponseWriter, r *http.Request) {
	if !handler.testSetupEnabled {
		pkg.WriteErrorJSON(w, http.StatusNotFound, "not found")
		return
	}

	stats, err := handler.service.Stats(r.Context())
	if err != nil {
		pkg.WriteErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}

	pkg.WriteSuccessJSON(w, http.StatusOK, stats, "test setup info")
}

func (handler *Handler) handleTestSetup(w http.ResponseWriter, r *http.Request) {
	if !handler.testSetupEnabled {
		pkg.WriteErrorJSON(w, http.StatusNotFound, "not found")
		return
	}

	log.Warnln("test setup: clearing all blog data and reseeding")

	if err := handler.service.ClearAll(r.Context()); err != nil {
		pkg.WriteErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := handler.service.Seed(r.Context(), seedPostsCount); err != nil {
		pkg.WriteErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}

	pkg.WriteSuccessJSON(w, http.StatusOK, nil, "test setup done")
}

func (handler *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPostNotFound):
		pkg.WriteErrorJSON(w, http.StatusNotFound, "post not found")
	case errors.Is(err, ErrSlugTaken):
		pkg.WriteErrorJSON(w, http.StatusConflict, "slug already taken")
	case errors.Is(err, ErrInvalidCategory):
		pkg.WriteErrorJSON(w, http.StatusBadRequest, "invalid category")
	default:
		log.Errorf("blog handler: %s", err)
		pkg.WriteErrorJSON(w, http.StatusInternalServerError, err.Error())
	}
}

func postID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	idParam := mux.Vars(r)["id"]
	id, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		pkg.WriteValidationErrorJSON(w, map[string]string{
			"id": "must be a valid object id",
		})
		return primitive.NilObjectID, false
	}
	return id, true
}

func validatePostInput(input PostInput) map[string]string {
	details := map[string]string{}
	if len(input.Title) < 3 || len(input.Title) > 200 {
		details["title"] = "must be between 3 and 200 characters"
	}
	if input.Slug != "" && !slugPattern.MatchString(input.Slug) {
		details["slug"] = "must contain only lowercase letters, digits and hyphens"
	}
	if input.Excerpt != "" && (len(input.Excerpt) < 10 || len(input.Excerpt) > 300) {
		details["excerpt"] = "must be between 10 and 300 characters"
	}
	if len(input.Content) < 50 {
		details["content"] = "must be at least 50 characters"
	}
	if input.Author.Name == "" {
		details["author.name"] = "is required"
	}
	if input.Author.Email == "" {
		details["author.email"] = "is required"
	}
	if input.CategoryID == "" {
		details["categoryId"] = "is required"
	}
	if input.Status != "" && !input.Status.Valid() {
		details["status"] = "must be one of: draft, published, archived"
	}
	return details
}

func validatePostUpdate(update PostUpdate) map[string]string {
	details := map[string]string{}
	if update.Title != nil && (len(*update.Title) < 3 || len(*update.Title) > 200) {
		details["title"] = "must be between 3 and 200 characters"
	}
	if update.Slug != nil && !slugPattern.MatchString(*update.Slug) {
		details["slug"] = "must contain only lowercase letters, digits and hyphens"
	}
	if update.Excerpt != nil && *update.Excerpt != "" &&
		(len(*update.Excerpt) < 10 || len(*update.Excerpt) > 300) {
		details["excerpt"] = "must be between 10 and 300 characters"
	}
	if update.Content != nil && len(*update.Content) < 50 {
		details["content"] = "must be at least 50 characters"
	}
	if update.Author != nil {
		if update.Author.Name == "" {
			details["author.name"] = "is required"
		}
		if update.Author.Email == "" {
			details["author.email"] = "is required"
		}
	}
	if update.CategoryID != nil && *update.CategoryID == "" {
		details["categoryId"] = "must not be empty"
	}
	if update.Status != nil && !update.Status.Valid() {
		details["status"] = "must be one of: draft, published, archived"
	}
	return details
}
