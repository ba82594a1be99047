package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	storedomain "github.com/vyaparai/vyaparai/internal/store/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) storedomain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, store *storedomain.Store) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO stores (
			id, code, name, gstin, state_code, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		store.ID,
		store.Code,
		store.Name,
		store.GSTIN,
		store.StateCode,
		store.CreatedAt,
		store.UpdatedAt,
	).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*storedomain.Store, error) {
	var store storedomain.Store
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, code, name, gstin, state_code, created_at, updated_at
		 FROM stores WHERE id = ?`,
		id,
	).Scan(&store).Error
	if err != nil {
		return nil, err
	}
	if store.ID == 0 {
		return nil, nil
	}
	return &store, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*storedomain.Store, error) {
	var store storedomain.Store
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, code, name, gstin, state_code, created_at, updated_at
		 FROM stores WHERE code = ?`,
		code,
	).Scan(&store).Error
	if err != nil {
		return nil, err
	}
	if store.ID == 0 {
		return nil, nil
	}
	return &store, nil
}

func (r *repository) List(ctx context.Context) ([]*storedomain.Store, error) {
	var stores []*storedomain.Store
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, code, name, gstin, state_code, created_at, updated_at
		 FROM stores ORDER BY id ASC`,
	).Scan(&stores).Error
	if err != nil {
		return nil, err
	}
	return stores, nil
}
