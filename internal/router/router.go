package router

import (
	"net/http"
	"os"

	"toytopia/internal/config"
	"toytopia/internal/handlers"
	"toytopia/internal/middleware"
	"toytopia/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// SetupRouter builds the HTTP surface: public auth and newsletter endpoints,
// and the session-gated shop, toy detail, favorites and games views.
func SetupRouter(
	cfg config.Config,
	session *services.SessionService,
	identity *services.IdentityService,
	authService *services.AuthService,
	catalog *services.CatalogService,
	favorites *services.FavoritesService,
	newsletter *services.NewsletterService,
	logger zerolog.Logger,
) *mux.Router {
	authHandler := handlers.NewAuthHandler(session, identity, authService, logger)
	catalogHandler := handlers.NewCatalogHandler(catalog, logger)
	favoritesHandler := handlers.NewFavoritesHandler(favorites, logger)
	newsletterHandler := handlers.NewNewsletterHandler(newsletter, logger)

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = os.Getenv("JWT_SECRET")
	}
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		logger.Warn().Msg("JWT_SECRET not set, using default key")
	}

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(10), 20)

	r.Use(middleware.ErrorHandling(logger))
	r.Use(middleware.PerformanceMonitoring(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(rateLimiter.Middleware())

	api := r.PathPrefix("/api/v1").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.Use(middleware.RequestValidation())
	auth.HandleFunc("/register", authHandler.Register).Methods("POST")
	auth.HandleFunc("/login", authHandler.Login).Methods("POST")
	auth.HandleFunc("/oauth/{provider}", authHandler.OAuth).Methods("POST")
	auth.HandleFunc("/forgot-password", authHandler.ForgotPassword).Methods("POST")
	auth.HandleFunc("/reset-password", authHandler.ResetPassword).Methods("POST")
	auth.HandleFunc("/verify-email", authHandler.VerifyEmail).Methods("GET")
	auth.HandleFunc("/logout", authHandler.Logout).Methods("POST")

	protectedAuth := auth.PathPrefix("").Subrouter()
	protectedAuth.Use(middleware.Authentication(jwtSecret, logger))
	protectedAuth.HandleFunc("/me", authHandler.Me).Methods("GET")

	// Public storefront data
	api.HandleFunc("/toys/popular", catalogHandler.Popular).Methods("GET")
	api.HandleFunc("/toys/categories", catalogHandler.Categories).Methods("GET")
	api.HandleFunc("/newsletter", newsletterHandler.Subscribe).Methods("POST")

	// Session-gated shop views
	shop := api.PathPrefix("/toys").Subrouter()
	shop.Use(middleware.Authentication(jwtSecret, logger))
	shop.HandleFunc("", catalogHandler.List).Methods("GET")
	shop.HandleFunc("/{id:[0-9]+}", catalogHandler.Get).Methods("GET")

	games := api.PathPrefix("/games").Subrouter()
	games.Use(middleware.Authentication(jwtSecret, logger))
	games.HandleFunc("", catalogHandler.Games).Methods("GET")

	fav := api.PathPrefix("/favorites").Subrouter()
	fav.Use(middleware.Authentication(jwtSecret, logger))
	fav.HandleFunc("", favoritesHandler.List).Methods("GET")
	fav.HandleFunc("", favoritesHandler.Add).Methods("POST")
	fav.HandleFunc("/{id:[0-9]+}", favoritesHandler.Remove).Methods("DELETE")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not_found","message":"Page not found"}`))
	})

	return r
}
