package services

import (
	"database/sql"
	"errors"
	"fmt"

	"toytopia/internal/models"

	"github.com/rs/zerolog"
)

var ErrNotFavorited = errors.New("product is not in favorites")

// FavoritesService keeps each shopper's favorite products. Rows reference
// catalog product ids; the catalog itself stays read-only.
type FavoritesService struct {
	db      *sql.DB
	catalog *CatalogService
	logger  zerolog.Logger
}

func NewFavoritesService(db *sql.DB, catalog *CatalogService, logger zerolog.Logger) *FavoritesService {
	return &FavoritesService{
		db:      db,
		catalog: catalog,
		logger:  logger,
	}
}

// Add favorites a product for the user. Adding an already-favorited product
// is a no-op.
func (s *FavoritesService) Add(userID, productID int) error {
	if _, err := s.catalog.Get(productID); err != nil {
		return err
	}

	_, err := s.db.Exec(
		"INSERT IGNORE INTO favorites (user_id, product_id) VALUES (?, ?)",
		userID, productID,
	)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Int("product_id", productID).Msg("Error adding favorite")
		return fmt.Errorf("failed to add favorite: %w", err)
	}

	s.logger.Info().Int("user_id", userID).Int("product_id", productID).Msg("Favorite added")
	return nil
}

// Remove unfavorites a product for the user.
func (s *FavoritesService) Remove(userID, productID int) error {
	result, err := s.db.Exec(
		"DELETE FROM favorites WHERE user_id = ? AND product_id = ?",
		userID, productID,
	)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Int("product_id", productID).Msg("Error removing favorite")
		return fmt.Errorf("failed to remove favorite: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	if affected == 0 {
		return ErrNotFavorited
	}
	return nil
}

// List returns the user's favorite products joined against the catalog.
// Favorites pointing at products no longer in the catalog are skipped.
func (s *FavoritesService) List(userID int) ([]models.Product, error) {
	rows, err := s.db.Query(
		"SELECT product_id FROM favorites WHERE user_id = ? ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error listing favorites")
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var productID int
		if err := rows.Scan(&productID); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		product, err := s.catalog.Get(productID)
		if err != nil {
			continue
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	return products, nil
}
