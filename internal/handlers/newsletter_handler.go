package handlers

import (
	"encoding/json"
	"net/http"

	"toytopia/internal/services"

	"github.com/rs/zerolog"
)

type NewsletterHandler struct {
	newsletter *services.NewsletterService
	logger     zerolog.Logger
}

func NewNewsletterHandler(newsletter *services.NewsletterService, logger zerolog.Logger) *NewsletterHandler {
	return &NewsletterHandler{
		newsletter: newsletter,
		logger:     logger,
	}
}

func (h *NewsletterHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	notice, err := h.newsletter.Subscribe(req.Email)
	if err != nil {
		if err == services.ErrInvalidEmail {
			h.respondWithError(w, http.StatusBadRequest, "invalid_email", "Please enter a valid email address.")
			return
		}
		h.logger.Error().Err(err).Msg("Newsletter subscription failed")
		h.respondWithError(w, http.StatusInternalServerError, "subscribe_failed", "Failed to subscribe. Please try again.")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": notice,
	})
}

func (h *NewsletterHandler) respondWithError(w http.ResponseWriter, code int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

func (h *NewsletterHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
