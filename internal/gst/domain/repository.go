package domain

import "context"

// Repository is the persistent rate-table store. Scans feed the in-memory
// rate cache; writes invalidate it.
type Repository interface {
	ScanCategories(ctx context.Context) ([]Category, error)
	FindCategoryByCode(ctx context.Context, code string) (*Category, error)
	CreateCategory(ctx context.Context, category *Category) error
	UpdateCategory(ctx context.Context, category *Category) error
	ScanHSNMappings(ctx context.Context) ([]HSNMapping, error)
	CreateHSNMapping(ctx context.Context, mapping *HSNMapping) error
}
