package repository

import (
	"context"

	gstdomain "github.com/vyaparai/vyaparai/internal/gst/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) gstdomain.Repository {
	return &repository{db: db}
}

func (r *repository) ScanCategories(ctx context.Context) ([]gstdomain.Category, error) {
	var categories []gstdomain.Category
	err := r.db.WithContext(ctx).
		Model(&gstdomain.Category{}).
		Order("code ASC").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) FindCategoryByCode(ctx context.Context, code string) (*gstdomain.Category, error) {
	var category gstdomain.Category
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, code, name, hsn_prefix, rate, cess_rate, description, created_at, updated_at
		 FROM gst_categories
		 WHERE code = ?`,
		code,
	).Scan(&category).Error
	if err != nil {
		return nil, err
	}
	if category.ID == 0 {
		return nil, nil
	}
	return &category, nil
}

func (r *repository) CreateCategory(ctx context.Context, category *gstdomain.Category) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO gst_categories (
			id, code, name, hsn_prefix, rate, cess_rate, description, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		category.ID,
		category.Code,
		category.Name,
		category.HSNPrefix,
		category.Rate,
		category.CessRate,
		category.Description,
		category.CreatedAt,
		category.UpdatedAt,
	).Error
}

func (r *repository) UpdateCategory(ctx context.Context, category *gstdomain.Category) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE gst_categories
		 SET name = ?, hsn_prefix = ?, rate = ?, cess_rate = ?, description = ?, updated_at = ?
		 WHERE code = ?`,
		category.Name,
		category.HSNPrefix,
		category.Rate,
		category.CessRate,
		category.Description,
		category.UpdatedAt,
		category.Code,
	).Error
}

func (r *repository) ScanHSNMappings(ctx context.Context) ([]gstdomain.HSNMapping, error) {
	var mappings []gstdomain.HSNMapping
	err := r.db.WithContext(ctx).
		Model(&gstdomain.HSNMapping{}).
		Order("hsn_code ASC").
		Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	return mappings, nil
}

func (r *repository) CreateHSNMapping(ctx context.Context, mapping *gstdomain.HSNMapping) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO hsn_mappings (
			id, hsn_code, category_code, created_at
		) VALUES (?, ?, ?, ?)`,
		mapping.ID,
		mapping.HSNCode,
		mapping.CategoryCode,
		mapping.CreatedAt,
	).Error
}
