package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"toytopia/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	// ErrCatalogUnavailable is returned when the catalog data source failed
	// to load; the service then serves an empty list instead of crashing.
	ErrCatalogUnavailable = errors.New("catalog data could not be loaded")
	ErrProductNotFound    = errors.New("product not found")
)

type CatalogService struct {
	products []models.Product
	loadErr  error
	logger   zerolog.Logger
}

func NewCatalogService(logger zerolog.Logger) *CatalogService {
	return &CatalogService{logger: logger}
}

// Load fetches the catalog once from a local file path or an HTTP URL.
// A failed or malformed load leaves the service serving an empty catalog
// with ErrCatalogUnavailable; it never panics into the handlers.
func (s *CatalogService) Load(source string) error {
	data, err := s.fetch(source)
	if err != nil {
		s.logger.Error().Err(err).Str("source", source).Msg("Failed to fetch catalog data")
		s.products = nil
		s.loadErr = ErrCatalogUnavailable
		return s.loadErr
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		s.logger.Error().Err(err).Str("source", source).Msg("Malformed catalog data")
		s.products = nil
		s.loadErr = ErrCatalogUnavailable
		return s.loadErr
	}

	s.products = products
	s.loadErr = nil
	s.logger.Info().Int("count", len(products)).Str("source", source).Msg("Catalog loaded")
	return nil
}

func (s *CatalogService) fetch(source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return nil, fmt.Errorf("fetching catalog: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetching catalog: unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading catalog response: %w", err)
		}
		return body, nil
	}
	return os.ReadFile(source)
}

// LoadFailed reports whether the last load attempt left the catalog empty.
func (s *CatalogService) LoadFailed() bool {
	return s.loadErr != nil
}

// Size returns the number of products in the source list.
func (s *CatalogService) Size() int {
	return len(s.products)
}

// Query derives the ordered subset of the catalog matching every active
// predicate of the filter, stable-sorted by the filter's sort key. The
// source list is never mutated; the same filter applied twice yields
// identical output.
func (s *CatalogService) Query(filter models.FilterState) ([]models.Product, error) {
	if s.loadErr != nil {
		return []models.Product{}, s.loadErr
	}

	search := strings.ToLower(filter.Search)

	matched := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		if !matchesSearch(p, search) {
			continue
		}
		if !matchesCategory(p, filter.Categories) {
			continue
		}
		if p.Price < filter.MinPrice || p.Price > filter.MaxPrice {
			continue
		}
		if filter.MinRating > 0 && p.Rating < filter.MinRating {
			continue
		}
		matched = append(matched, p)
	}

	sortProducts(matched, filter.SortBy)
	return matched, nil
}

func matchesSearch(p models.Product, search string) bool {
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), search) ||
		strings.Contains(strings.ToLower(p.Description), search)
}

func matchesCategory(p models.Product, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if p.Category == c {
			return true
		}
	}
	return false
}

func sortProducts(products []models.Product, key models.SortKey) {
	switch key {
	case models.SortByPriceLow:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case models.SortByPriceHigh:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price > products[j].Price
		})
	case models.SortByRating:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Rating > products[j].Rating
		})
	default:
		// Locale-aware name ordering, matching how storefronts collate
		// product titles. A collator is not safe for concurrent use, so
		// each sort gets its own.
		c := collate.New(language.English, collate.IgnoreCase)
		sort.SliceStable(products, func(i, j int) bool {
			return c.CompareString(products[i].Name, products[j].Name) < 0
		})
	}
}

// Get returns the product with the given id.
func (s *CatalogService) Get(id int) (*models.Product, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	for _, p := range s.products {
		if p.ID == id {
			product := p
			return &product, nil
		}
	}
	return nil, ErrProductNotFound
}

// Details returns the enriched detail payload for a product page. The extra
// gallery images, specifications and features are static showcase values
// until the catalog feed carries real ones.
func (s *CatalogService) Details(id int) (*models.ProductDetails, error) {
	product, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	return &models.ProductDetails{
		Product: *product,
		Images:  []string{product.PictureURL, product.PictureURL, product.PictureURL},
		Specifications: map[string]string{
			"material":   "High-quality Plastic",
			"ageRange":   "3-8 years",
			"weight":     "0.5 kg",
			"dimensions": "15x10x8 cm",
			"battery":    "2x AA (not included)",
		},
		Features: []string{
			"Educational and fun",
			"Safe for children",
			"Durable construction",
			"Easy to clean",
			"Promotes creativity",
		},
	}, nil
}

// Popular returns the n highest-rated products.
func (s *CatalogService) Popular(n int) ([]models.Product, error) {
	if s.loadErr != nil {
		return []models.Product{}, s.loadErr
	}
	top := make([]models.Product, len(s.products))
	copy(top, s.products)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Rating > top[j].Rating
	})
	if len(top) > n {
		top = top[:n]
	}
	return top, nil
}

// CategoryCounts returns how many products fall in each of the declared
// sidebar categories. Categories with no products still appear with a zero
// count; product categories outside the declared list are not reported.
func (s *CatalogService) CategoryCounts() map[string]int {
	counts := make(map[string]int, len(models.Categories))
	for _, c := range models.Categories {
		counts[c] = 0
	}
	for _, p := range s.products {
		if _, ok := counts[p.Category]; ok {
			counts[p.Category]++
		}
	}
	return counts
}
