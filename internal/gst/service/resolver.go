package service

import (
	"context"
	"sort"
	"strings"

	gstdomain "github.com/vyaparai/vyaparai/internal/gst/domain"
	"go.uber.org/zap"
)

// ResolveRateForProduct walks the fallback chain in fixed priority order:
// explicit category code, exact HSN code, 4-digit HSN prefix, product-name
// keyword suggestion, then the statutory default. Each step only runs when
// every earlier step failed to match; the ordering determines tax liability.
func (s *Service) ResolveRateForProduct(ctx context.Context, req gstdomain.ResolveRateRequest) (*gstdomain.RateResolution, error) {
	categories, err := s.loadCategories(ctx)
	if err != nil {
		return nil, err
	}

	// (a) explicit category code
	if code := strings.ToUpper(strings.TrimSpace(req.CategoryCode)); code != "" {
		if category, ok := categories[code]; ok {
			return resolution(category, gstdomain.RateSourceCategory), nil
		}
	}

	// (b) HSN lookup, exact code before 4-digit prefix
	if hsn := strings.TrimSpace(req.HSNCode); hsn != "" {
		mappings := s.hsnMappings(ctx)
		if code, ok := mappings[hsn]; ok {
			if category, found := categories[code]; found {
				return resolution(category, gstdomain.RateSourceHSN), nil
			}
		}
		if len(hsn) > 4 {
			if code, ok := mappings[hsn[:4]]; ok {
				if category, found := categories[code]; found {
					return resolution(category, gstdomain.RateSourceHSNPrefix), nil
				}
			}
		}
	}

	// (c) best-effort keyword suggestion from the product name.
	// Keywords are matched in sorted order so a name that hits more than one
	// keyword always resolves the same way.
	if name := strings.ToLower(strings.TrimSpace(req.ProductName)); name != "" {
		keywords := s.rates.Get().Keywords
		for _, keyword := range sortedKeys(keywords) {
			code := keywords[keyword]
			if strings.Contains(name, keyword) {
				if category, ok := categories[code]; ok {
					s.log.Debug("resolved rate by keyword",
						zap.String("product_name", req.ProductName),
						zap.String("keyword", keyword),
						zap.String("category_code", code),
					)
					return resolution(category, gstdomain.RateSourceKeyword), nil
				}
			}
		}
	}

	// (d) statutory default
	return &gstdomain.RateResolution{
		Rate:   gstdomain.DefaultRateSlab,
		Source: gstdomain.RateSourceDefault,
	}, nil
}

func (s *Service) hsnMappings(ctx context.Context) map[string]string {
	return s.loadHSNMappings(ctx)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func resolution(category gstdomain.Category, source gstdomain.RateSource) *gstdomain.RateResolution {
	return &gstdomain.RateResolution{
		Rate:         category.Slab(),
		CessRate:     category.CessRate,
		CategoryCode: category.Code,
		Source:       source,
	}
}
