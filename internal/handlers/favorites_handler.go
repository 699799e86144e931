package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"toytopia/internal/middleware"
	"toytopia/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type FavoritesHandler struct {
	favorites *services.FavoritesService
	logger    zerolog.Logger
}

func NewFavoritesHandler(favorites *services.FavoritesService, logger zerolog.Logger) *FavoritesHandler {
	return &FavoritesHandler{
		favorites: favorites,
		logger:    logger,
	}
}

func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	toys, err := h.favorites.List(userID)
	if err != nil {
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to list favorites")
		h.respondWithError(w, http.StatusInternalServerError, "fetch_failed", "Failed to fetch favorites")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"toys": toys,
	})
}

func (h *FavoritesHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req struct {
		ProductID int `json:"toyId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.favorites.Add(userID, req.ProductID); err != nil {
		if err == services.ErrProductNotFound {
			h.respondWithError(w, http.StatusNotFound, "toy_not_found", "Toy not found")
			return
		}
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to add favorite")
		h.respondWithError(w, http.StatusInternalServerError, "add_failed", "Failed to add favorite")
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]string{
		"message": "Added to favorites",
	})
}

func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	productID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid_id", "Toy id must be an integer")
		return
	}

	if err := h.favorites.Remove(userID, productID); err != nil {
		if err == services.ErrNotFavorited {
			h.respondWithError(w, http.StatusNotFound, "not_favorited", "Toy is not in favorites")
			return
		}
		h.logger.Error().Err(err).Int("user_id", userID).Msg("Failed to remove favorite")
		h.respondWithError(w, http.StatusInternalServerError, "remove_failed", "Failed to remove favorite")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Removed from favorites",
	})
}

func (h *FavoritesHandler) respondWithError(w http.ResponseWriter, code int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

func (h *FavoritesHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
