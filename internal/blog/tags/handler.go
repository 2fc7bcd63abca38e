package tags

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/techieonvacation/renderwise-backend/pkg"
)

type tagStore interface {
	List(ctx context.Context) ([]*Tag, error)
	Popular(ctx context.Context, limit int) ([]*PopularTag, error)
}

type Handler struct {
	store tagStore
}

func NewHandler(store tagStore) *Handler {
	return &Handler{
		store: store,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/blog/tags", handler.handleList).Methods("GET").Name("list-tags")
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")

	if r.URL.Query().Get("popular") == "true" {
		limit := 10
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed < 1 {
				pkg.WriteValidationErrorJSON(w, map[string]string{
					"limit": "limit must be a positive integer",
				})
				return
			}
			limit = parsed
		}

		popularTags, err := handler.store.Popular(r.Context(), limit)
		if err != nil {
			log.Errorf("get popular tags: %s", err)
			pkg.WriteErrorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if popularTags == nil {
			popularTags = []*PopularTag{}
		}

		pkg.WriteSuccessJSON(w, http.StatusOK, popularTags, "")
		return
	}

	allTags, err := handler.store.List(r.Context())
	if err != nil {
		log.Errorf("get all tags: %s", err)
		pkg.WriteErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if allTags == nil {
		allTags = []*Tag{}
	}

	pkg.WriteSuccessJSON(w, http.StatusOK, allTags, "")
}
