package models

type Product struct {
	ID                int     `json:"toyId"`
	Name              string  `json:"toyName"`
	Description       string  `json:"description"`
	Category          string  `json:"subCategory"`
	Price             float64 `json:"price"`
	Rating            float64 `json:"rating"`
	AvailableQuantity int     `json:"availableQuantity"`
	PictureURL        string  `json:"pictureURL"`
	SellerName        string  `json:"sellerName"`
}

type SortKey string

const (
	SortByName      SortKey = "name"
	SortByPriceLow  SortKey = "price-low"
	SortByPriceHigh SortKey = "price-high"
	SortByRating    SortKey = "rating"
)

// Categories is the fixed list shown in the shop sidebar. It is intentionally
// hard-coded rather than derived from the catalog data; products whose
// category is not listed here are still served and filterable by the other
// predicates.
var Categories = []string{
	"Building Blocks",
	"Dolls",
	"Vehicles",
	"Arts & Crafts",
	"Outdoor Play",
	"Educational",
	"Stuffed Animals",
	"Musical Toys",
	"Games & Puzzles",
}

const (
	DefaultMinPrice = 0
	DefaultMaxPrice = 250
)

// FilterState holds the catalog query parameters chosen by a shopper. It only
// ever derives a view of the product list and never mutates it.
type FilterState struct {
	Search     string   `json:"search"`
	Categories []string `json:"categories"`
	MinPrice   float64  `json:"minPrice"`
	MaxPrice   float64  `json:"maxPrice"`
	MinRating  float64  `json:"minRating"`
	SortBy     SortKey  `json:"sortBy"`
}

// DefaultFilter returns the filter state a fresh shop view starts with:
// no search, all categories, the full price range, no rating threshold,
// sorted by name.
func DefaultFilter() FilterState {
	return FilterState{
		Search:     "",
		Categories: nil,
		MinPrice:   DefaultMinPrice,
		MaxPrice:   DefaultMaxPrice,
		MinRating:  0,
		SortBy:     SortByName,
	}
}

// ProductDetails is the enriched payload served for a single product page.
// Specifications and features are static showcase data until the upstream
// catalog starts carrying them.
type ProductDetails struct {
	Product
	Images         []string          `json:"images"`
	Specifications map[string]string `json:"specifications"`
	Features       []string          `json:"features"`
}
