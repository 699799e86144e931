package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"toytopia/internal/models"
	"toytopia/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const popularCount = 6

type CatalogHandler struct {
	catalog *services.CatalogService
	logger  zerolog.Logger
}

func NewCatalogHandler(catalog *services.CatalogService, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// List serves the shop view: the catalog filtered and sorted by the query
// parameters, falling back to the default filter state for any omitted one.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	toys, err := h.catalog.Query(filter)
	if err != nil {
		h.respondWithError(w, http.StatusServiceUnavailable, "catalog_unavailable", "Could not load toys. Please try again later.")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"toys":    toys,
		"showing": len(toys),
		"total":   h.catalog.Size(),
	})
}

func parseFilter(r *http.Request) models.FilterState {
	filter := models.DefaultFilter()
	q := r.URL.Query()

	filter.Search = q.Get("search")

	if categories := q.Get("categories"); categories != "" {
		filter.Categories = strings.Split(categories, ",")
	}
	if minPrice := q.Get("min_price"); minPrice != "" {
		if v, err := strconv.ParseFloat(minPrice, 64); err == nil && v >= 0 {
			filter.MinPrice = v
		}
	}
	if maxPrice := q.Get("max_price"); maxPrice != "" {
		if v, err := strconv.ParseFloat(maxPrice, 64); err == nil && v >= filter.MinPrice {
			filter.MaxPrice = v
		}
	}
	if minRating := q.Get("min_rating"); minRating != "" {
		if v, err := strconv.ParseFloat(minRating, 64); err == nil && v >= 0 && v <= 5 {
			filter.MinRating = v
		}
	}
	switch models.SortKey(q.Get("sort")) {
	case models.SortByPriceLow:
		filter.SortBy = models.SortByPriceLow
	case models.SortByPriceHigh:
		filter.SortBy = models.SortByPriceHigh
	case models.SortByRating:
		filter.SortBy = models.SortByRating
	}

	return filter
}

func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid_id", "Toy id must be an integer")
		return
	}

	details, err := h.catalog.Details(id)
	if err != nil {
		if err == services.ErrProductNotFound {
			h.respondWithError(w, http.StatusNotFound, "toy_not_found", "Toy not found")
			return
		}
		h.respondWithError(w, http.StatusServiceUnavailable, "catalog_unavailable", "Could not load toys. Please try again later.")
		return
	}

	h.respondWithJSON(w, http.StatusOK, details)
}

func (h *CatalogHandler) Popular(w http.ResponseWriter, r *http.Request) {
	toys, err := h.catalog.Popular(popularCount)
	if err != nil {
		h.respondWithError(w, http.StatusServiceUnavailable, "catalog_unavailable", "Could not load toys. Please try again later.")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"toys": toys,
	})
}

// Games serves the session-gated games view: the Games & Puzzles category
// ordered by rating.
func (h *CatalogHandler) Games(w http.ResponseWriter, r *http.Request) {
	filter := models.DefaultFilter()
	filter.Categories = []string{"Games & Puzzles"}
	filter.SortBy = models.SortByRating

	toys, err := h.catalog.Query(filter)
	if err != nil {
		h.respondWithError(w, http.StatusServiceUnavailable, "catalog_unavailable", "Could not load toys. Please try again later.")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"toys": toys,
	})
}

// Categories serves the filter sidebar data: the declared category list with
// per-category product counts.
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"categories": models.Categories,
		"counts":     h.catalog.CategoryCounts(),
	})
}

func (h *CatalogHandler) respondWithError(w http.ResponseWriter, code int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

func (h *CatalogHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
