package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Service manages the rate table and serves rate lookups through the cache.
type Service interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error)
	UpdateCategory(ctx context.Context, req UpdateCategoryRequest) (*Category, error)
	CreateHSNMapping(ctx context.Context, req CreateHSNMappingRequest) (*HSNMapping, error)

	// ResolveRateForProduct walks the fallback chain:
	// explicit category, exact HSN, 4-digit HSN prefix, product-name keyword,
	// then the statutory default. The ordering determines tax liability and
	// must not be reordered.
	ResolveRateForProduct(ctx context.Context, req ResolveRateRequest) (*RateResolution, error)

	// InvalidateCache forces the next lookup to reload from the store.
	// Called after admin rate-table writes.
	InvalidateCache(scope InvalidateScope)
	CacheStats() CacheStats
}

type InvalidateScope string

const (
	InvalidateAll        InvalidateScope = "all"
	InvalidateCategories InvalidateScope = "categories"
	InvalidateHSN        InvalidateScope = "hsn"
)

type CreateCategoryRequest struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	HSNPrefix   string          `json:"hsn_prefix"`
	Rate        int             `json:"rate"`
	CessRate    decimal.Decimal `json:"cess_rate"`
	Description string          `json:"description"`
}

type UpdateCategoryRequest struct {
	Code        string           `json:"code"`
	Name        *string          `json:"name,omitempty"`
	HSNPrefix   *string          `json:"hsn_prefix,omitempty"`
	Rate        *int             `json:"rate,omitempty"`
	CessRate    *decimal.Decimal `json:"cess_rate,omitempty"`
	Description *string          `json:"description,omitempty"`
}

type CreateHSNMappingRequest struct {
	HSNCode      string `json:"hsn_code"`
	CategoryCode string `json:"category_code"`
}

type ResolveRateRequest struct {
	CategoryCode string `json:"category_code"`
	HSNCode      string `json:"hsn_code"`
	ProductName  string `json:"product_name"`
}

// CacheStats reports rate-cache effectiveness and staleness.
type CacheStats struct {
	CategoryHits    uint64  `json:"category_hits"`
	CategoryMisses  uint64  `json:"category_misses"`
	HSNHits         uint64  `json:"hsn_hits"`
	HSNMisses       uint64  `json:"hsn_misses"`
	HitRate         float64 `json:"hit_rate"`
	CategoryCount   int     `json:"category_count"`
	HSNCount        int     `json:"hsn_count"`
	CategoriesStale bool    `json:"categories_stale"`
	HSNStale        bool    `json:"hsn_stale"`
}
