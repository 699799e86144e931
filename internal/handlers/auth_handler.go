package handlers

import (
	"encoding/json"
	"net/http"

	"toytopia/internal/middleware"
	"toytopia/internal/models"
	"toytopia/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type AuthHandler struct {
	session  *services.SessionService
	identity *services.IdentityService
	auth     *services.AuthService
	logger   zerolog.Logger
}

func NewAuthHandler(session *services.SessionService, identity *services.IdentityService, auth *services.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		session:  session,
		identity: identity,
		auth:     auth,
		logger:   logger,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, sessErr := h.session.Register(req)
	if sessErr != nil {
		h.respondWithSessionError(w, sessErr)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"user":   result.User,
		"notice": result.Notice,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, sessErr := h.session.SignIn(req)
	if sessErr != nil {
		h.logger.Warn().Str("email", req.Email).Str("kind", string(sessErr.Kind)).Msg("Login failed")
		h.respondWithSessionError(w, sessErr)
		return
	}

	token, err := h.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error().Err(err).Msg("Token generation failed")
		h.respondWithError(w, http.StatusInternalServerError, "token_generation_failed", "Failed to generate token")
		return
	}

	h.respondWithJSON(w, http.StatusOK, models.AuthResponse{
		User:  user,
		Token: token,
	})
}

// OAuth completes a popup sign-in for the provider named in the path. A
// popup the shopper closed resolves as 204 with no error shown.
func (h *AuthHandler) OAuth(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]

	var req models.OAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, sessErr := h.session.OAuthSignIn(provider, req)
	if sessErr != nil {
		h.respondWithSessionError(w, sessErr)
		return
	}
	if user == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	token, err := h.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error().Err(err).Msg("Token generation failed")
		h.respondWithError(w, http.StatusInternalServerError, "token_generation_failed", "Failed to generate token")
		return
	}

	h.respondWithJSON(w, http.StatusOK, models.AuthResponse{
		User:  user,
		Token: token,
	})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, sessErr := h.session.RequestPasswordReset(req)
	if sessErr != nil {
		h.respondWithSessionError(w, sessErr)
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.respondWithError(w, http.StatusBadRequest, "invalid_request", "Verification token is required")
		return
	}

	if err := h.identity.ConfirmEmailVerification(token); err != nil {
		pe, _ := services.AsProviderError(err)
		if pe != nil && pe.Code == services.CodeInvalidCredential {
			h.respondWithError(w, http.StatusBadRequest, pe.Code, pe.Message)
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, "verification_failed", "Failed to verify email")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified. You can now sign in.",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.identity.ResetPassword(req.Token, req.NewPassword); err != nil {
		if pe, ok := services.AsProviderError(err); ok {
			h.respondWithError(w, http.StatusBadRequest, pe.Code, pe.Message)
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, "reset_failed", "Failed to reset password")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Password updated. You can now sign in.",
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessErr := h.session.SignOut(); sessErr != nil {
		h.respondWithSessionError(w, sessErr)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Signed out.",
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	user, err := h.identity.GetUserByID(userID)
	if err != nil {
		h.respondWithError(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}

	h.respondWithJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) respondWithSessionError(w http.ResponseWriter, sessErr *services.SessionError) {
	status := http.StatusBadRequest
	code := "validation_failed"
	switch sessErr.Kind {
	case services.KindEmailNotVerified:
		status = http.StatusForbidden
		code = "email_not_verified"
	case services.KindProvider:
		status = http.StatusUnauthorized
		code = sessErr.Code
		if code == "" {
			code = "auth_failed"
		}
	}

	h.respondWithError(w, status, code, sessErr.Message)
}

func (h *AuthHandler) respondWithError(w http.ResponseWriter, code int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

func (h *AuthHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
