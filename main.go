package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"toytopia/internal/config"
	"toytopia/internal/db"
	"toytopia/internal/logger"
	"toytopia/internal/router"
	"toytopia/internal/services"
)

func main() {
	cfg := config.LoadConfig()

	log := logger.InitLogger()
	log.Info().Msg("ToyTopia storefront starting")

	database := db.InitDB(cfg.DBUrl)
	defer database.Close()

	db.RunMigrations(database)

	catalog := services.NewCatalogService(log)
	if err := catalog.Load(cfg.ToysData); err != nil {
		// The shop degrades to an empty catalog with a visible
		// "could not load" state instead of refusing to start.
		log.Error().Err(err).Msg("Catalog load failed, serving empty catalog")
	}

	authService := services.NewAuthService(log)
	mailer := services.NewLogMailer(log)
	oauth := services.NewHTTPOAuthExchanger(log)
	identity := services.NewIdentityService(database, authService, mailer, oauth, log)

	session := services.NewSessionService(identity, log)
	defer session.Close()

	unsubscribe := session.Subscribe(func(s services.Session) {
		event := log.Info().Str("state", string(s.State))
		if s.User != nil {
			event = event.Int("user_id", s.User.ID)
		}
		event.Msg("Session state changed")
	})
	defer unsubscribe()

	session.Start()

	favorites := services.NewFavoritesService(database, catalog, log)
	newsletter := services.NewNewsletterService(database, log)
	defer newsletter.Close()

	r := router.SetupRouter(cfg, session, identity, authService, catalog, favorites, newsletter, log)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().Msgf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
