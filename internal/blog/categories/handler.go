package categories

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/techieonvacation/renderwise-backend/pkg"
)

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9-]+$`)
	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

type categoryStore interface {
	Create(ctx context.Context, input CategoryInput) (*Category, error)
	Update(ctx context.Context, id primitive.ObjectID, update CategoryUpdate) (*Category, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context) ([]*Category, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*Category, error)
}

type Handler struct {
	store categoryStore
}

func NewHandler(store categoryStore) *Handler {
	return &Handler{
		store: store,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/blog/categories", handler.handleList).Methods("GET").Name("list-categories")
	router.HandleFunc("/blog/categories", handler.handleCreate).Methods("POST", "OPTIONS").Name("new-category")
	router.HandleFunc("/blog/categories/{id}", handler.handleGet).Methods("GET").Name("get-category")
	router.HandleFunc("/blog/categories/{id}", handler.handleUpdate).Methods("PUT", "OPTIONS").Name("update-category")
	router.HandleFunc("/blog/categories/{id}", handler.handleDelete).Methods("DELETE", "OPTIONS").Name("delete-category")
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")

	allCategories, err := handler.store.List(r.Context())
	if err != nil {
		log.Errorf("list categories: %s", err)
		pkg.WriteErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if allCategories == nil {
		allCategories = []*Category{}
	}

	pkg.WriteSuccessJSON(w, http.StatusOK, allCategories, "")
}

func (handler *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Errorf("new category, unmarshal json params: %s", err)
		pkg.WriteErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if details := validateCategoryInput(input); len(details) > 0 {
		pkg.WriteValidationErrorJSON(w, details)
		return
	}

	category, err := handler.store.Create(r.Context(), input)
	if err != nil {
		handler.writeStoreError(w, err)
		return
	}

	log.Tracef("new category %s: [%s] added", category.ID.Hex(), category.Name)

	pkg.WriteSuccessJSON(w, http.StatusCreated, category, "category created")
}

func (handler *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := categoryID(w, r)
	if !ok {
		return
	}

	category, err := handler.store.GetByID(r.Context(), id)
	if err != nil {
		handler.writeStoreError(w, err)
		return
	}

	pkg.WriteSuccessJSON(w, http.StatusOK, category, "")
}

func (handler *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := categoryID(w, r)
	if !ok {
		return
	}

	var update CategoryUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Errorf("update category, unmarshal json params: %s", err)
		pkg.WriteErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if details := validateCategoryUpdate(update); len(details) > 0 {
		pkg.WriteValidationErrorJSON(w, details)
		return
	}

	category, err := handler.store.Update(r.Context(), id, update)
	if err != nil {
		handler.writeStoreError(w, err)
		return
	}

	pkg.WriteSuccessJSON(w, http.StatusOK, category, "category updated")
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := categoryID(w, r)
	if !ok {
		return
	}

	if err := handler.store.Delete(r.Context(), id); err != nil {
		handler.writeStoreError(w, err)
		return
	}

	pkg.WriteSuccessJSON(w, http.StatusOK, nil, "category deleted")
}

func (handler *Handler) writeStoreError(w http.ResponseWriter, err error) {
	var inUseErr *CategoryInUseError
	switch {
	case errors.Is(err, ErrCategoryNotFound):
		pkg.WriteErrorJSON(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlugTaken):
		pkg.WriteErrorJSON(w, http.StatusConflict, err.Error())
	case errors.As(err, &inUseErr):
		pkg.WriteErrorJSON(w, http.StatusConflict, inUseErr.Error())
	default:
		log.Errorf("category store error: %s", err)
		pkg.WriteErrorJSON(w, http.StatusInternalServerError, err.Error())
	}
}

func categoryID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	idParam := mux.Vars(r)["id"]
	id, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		pkg.WriteValidationErrorJSON(w, map[string]string{
			"id": "id must be a valid object id",
		})
		return primitive.NilObjectID, false
	}
	return id, true
}

func validateCategoryInput(input CategoryInput) map[string]string {
	details := make(map[string]string)
	if len(input.Name) < 2 || len(input.Name) > 100 {
		details["name"] = "name must be between 2 and 100 characters"
	}
	if input.Slug != "" && !slugPattern.MatchString(input.Slug) {
		details["slug"] = "slug may only contain lowercase letters, digits and hyphens"
	}
	if len(input.Description) > 200 {
		details["description"] = "description must be at most 200 characters"
	}
	if input.Color != "" && !colorPattern.MatchString(input.Color) {
		details["color"] = "color must be a hex string like #1a2b3c"
	}
	return details
}

func validateCategoryUpdate(update CategoryUpdate) map[string]string {
	details := make(map[string]string)
	if update.Name != nil && (len(*update.Name) < 2 || len(*update.Name) > 100) {
		details["name"] = "name must be between 2 and 100 characters"
	}
	if update.Slug != nil && !slugPattern.MatchString(*update.Slug) {
		details["slug"] = "slug may only contain lowercase letters, digits and hyphens"
	}
	if update.Description != nil && len(*update.Description) > 200 {
		details["description"] = "description must be at most 200 characters"
	}
	if update.Color != nil && *update.Color != "" && !colorPattern.MatchString(*update.Color) {
		details["color"] = "color must be a hex string like #1a2b3c"
	}
	return details
}
