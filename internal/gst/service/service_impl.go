package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/vyaparai/vyaparai/internal/cache"
	"github.com/vyaparai/vyaparai/internal/config"
	gstdomain "github.com/vyaparai/vyaparai/internal/gst/domain"
	obsmetrics "github.com/vyaparai/vyaparai/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Repo    gstdomain.Repository
	Cache   cache.RateCache
	Rates   *config.RateConfigHolder
	Log     *zap.Logger
	GenID   *snowflake.Node
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	repo    gstdomain.Repository
	cache   cache.RateCache
	rates   *config.RateConfigHolder
	log     *zap.Logger
	genID   *snowflake.Node
	metrics *obsmetrics.Metrics
}

func NewService(p Params) gstdomain.Service {
	return &Service{
		repo:    p.Repo,
		cache:   p.Cache,
		rates:   p.Rates,
		log:     p.Log.Named("gst.service"),
		genID:   p.GenID,
		metrics: p.Metrics,
	}
}

func (s *Service) recordCacheLookup(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordRateCacheLookup(hit)
	}
}

// loadCategories returns the effective rate table, refreshing the cache from
// the store when stale. The compiled-in table is used only when the store is
// unreachable or holds no rows at all: a fresh-but-empty lookup result for a
// specific code is "no match", never a reason to fall back to stale data.
func (s *Service) loadCategories(ctx context.Context) (map[string]gstdomain.Category, error) {
	if categories, ok := s.cache.GetCategories(); ok {
		s.recordCacheLookup(true)
		return categories, nil
	}
	s.recordCacheLookup(false)

	rows, err := s.repo.ScanCategories(ctx)
	if err != nil {
		s.log.Warn("rate table scan failed, serving compiled-in defaults", zap.Error(err))
		return s.staticCategories(), nil
	}
	if len(rows) == 0 {
		s.log.Warn("rate table is empty, serving compiled-in defaults")
		return s.staticCategories(), nil
	}

	categories := make(map[string]gstdomain.Category, len(rows))
	for _, row := range rows {
		categories[row.Code] = row
	}
	s.cache.SetCategories(categories)
	return categories, nil
}

func (s *Service) loadHSNMappings(ctx context.Context) map[string]string {
	if mappings, ok := s.cache.GetHSNMappings(); ok {
		s.recordCacheLookup(true)
		return mappings
	}
	s.recordCacheLookup(false)

	rows, err := s.repo.ScanHSNMappings(ctx)
	if err != nil {
		s.log.Warn("hsn mapping scan failed, serving compiled-in defaults", zap.Error(err))
		return s.rates.Get().HSNCodes
	}
	if len(rows) == 0 {
		return s.rates.Get().HSNCodes
	}

	mappings := make(map[string]string, len(rows))
	for _, row := range rows {
		mappings[row.HSNCode] = row.CategoryCode
	}
	s.cache.SetHSNMappings(mappings)
	return mappings
}

func (s *Service) staticCategories() map[string]gstdomain.Category {
	static := s.rates.Get()
	categories := make(map[string]gstdomain.Category, len(static.Categories))
	for _, c := range static.Categories {
		categories[c.Code] = gstdomain.Category{
			Code:        c.Code,
			Name:        c.Name,
			HSNPrefix:   c.HSNPrefix,
			Rate:        c.Rate,
			CessRate:    decimal.NewFromFloat(c.CessRate),
			Description: c.Description,
		}
	}
	return categories
}

func (s *Service) ListCategories(ctx context.Context) ([]gstdomain.Category, error) {
	categories, err := s.loadCategories(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]gstdomain.Category, 0, len(categories))
	for _, category := range categories {
		list = append(list, category)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list, nil
}

func (s *Service) CreateCategory(ctx context.Context, req gstdomain.CreateCategoryRequest) (*gstdomain.Category, error) {
	now := time.Now().UTC()
	category := &gstdomain.Category{
		ID:          s.genID.Generate(),
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:        strings.TrimSpace(req.Name),
		HSNPrefix:   strings.TrimSpace(req.HSNPrefix),
		Rate:        req.Rate,
		CessRate:    req.CessRate,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := category.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindCategoryByCode(ctx, category.Code)
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	if existing != nil {
		return nil, gstdomain.ErrCategoryExists
	}

	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.cache.InvalidateCategories()
	s.log.Info("created gst category",
		zap.String("code", category.Code),
		zap.Int("rate", category.Rate),
	)
	return category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, req gstdomain.UpdateCategoryRequest) (*gstdomain.Category, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, gstdomain.ErrInvalidCategoryCode
	}

	category, err := s.repo.FindCategoryByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	if category == nil {
		return nil, gstdomain.ErrNotFound
	}

	if req.Name != nil {
		category.Name = strings.TrimSpace(*req.Name)
	}
	if req.HSNPrefix != nil {
		category.HSNPrefix = strings.TrimSpace(*req.HSNPrefix)
	}
	if req.Rate != nil {
		category.Rate = *req.Rate
	}
	if req.CessRate != nil {
		category.CessRate = *req.CessRate
	}
	if req.Description != nil {
		category.Description = *req.Description
	}
	category.UpdatedAt = time.Now().UTC()

	if err := category.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	s.cache.InvalidateCategories()
	return category, nil
}

func (s *Service) CreateHSNMapping(ctx context.Context, req gstdomain.CreateHSNMappingRequest) (*gstdomain.HSNMapping, error) {
	hsnCode := strings.TrimSpace(req.HSNCode)
	if !validHSNCode(hsnCode) {
		return nil, gstdomain.ErrInvalidHSNCode
	}

	categoryCode := strings.ToUpper(strings.TrimSpace(req.CategoryCode))
	categories, err := s.loadCategories(ctx)
	if err != nil {
		return nil, err
	}
	// Invariant: every mapped category must exist in the rate table.
	if _, ok := categories[categoryCode]; !ok {
		return nil, gstdomain.ErrUnknownCategory
	}

	mapping := &gstdomain.HSNMapping{
		ID:           s.genID.Generate(),
		HSNCode:      hsnCode,
		CategoryCode: categoryCode,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateHSNMapping(ctx, mapping); err != nil {
		return nil, fmt.Errorf("create hsn mapping: %w", err)
	}

	s.cache.InvalidateHSN()
	s.log.Info("created hsn mapping",
		zap.String("hsn_code", mapping.HSNCode),
		zap.String("category_code", mapping.CategoryCode),
	)
	return mapping, nil
}

func (s *Service) InvalidateCache(scope gstdomain.InvalidateScope) {
	switch scope {
	case gstdomain.InvalidateCategories:
		s.cache.InvalidateCategories()
	case gstdomain.InvalidateHSN:
		s.cache.InvalidateHSN()
	default:
		s.cache.InvalidateAll()
	}
}

func (s *Service) CacheStats() gstdomain.CacheStats {
	return s.cache.Stats()
}

// HSN codes are 4 to 8 digit numeric chapter/heading codes.
func validHSNCode(code string) bool {
	if len(code) < 4 || len(code) > 8 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
