package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	customerdomain "github.com/vyaparai/vyaparai/internal/customer/domain"
	"github.com/vyaparai/vyaparai/pkg/db"
	"github.com/vyaparai/vyaparai/pkg/db/pagination"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) customerdomain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, customer *customerdomain.Customer) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO customers (
			id, store_id, name, phone, credit_limit, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.StoreID,
		customer.Name,
		customer.Phone,
		customer.CreditLimit,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return customerdomain.ErrCustomerExists
	}
	return err
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*customerdomain.Customer, error) {
	var customer customerdomain.Customer
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, store_id, name, phone, credit_limit, created_at, updated_at
		 FROM customers
		 WHERE id = ?`,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repository) FindByPhone(ctx context.Context, storeID snowflake.ID, phone string) (*customerdomain.Customer, error) {
	var customer customerdomain.Customer
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, store_id, name, phone, credit_limit, created_at, updated_at
		 FROM customers
		 WHERE store_id = ? AND phone = ?`,
		storeID,
		phone,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repository) List(ctx context.Context, storeID snowflake.ID, p pagination.Pagination) ([]*customerdomain.Customer, error) {
	stmt := r.db.WithContext(ctx).
		Model(&customerdomain.Customer{}).
		Where("store_id = ?", storeID)

	if p.PageToken != "" {
		cursor, err := pagination.DecodeCursor(p.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("id > ?", cursor.ID)
	}

	limit := p.PageSize
	if limit <= 0 {
		limit = 50
	}

	var customers []*customerdomain.Customer
	if err := stmt.Order("id ASC").Limit(limit + 1).Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repository) UpdateCreditLimit(ctx context.Context, id snowflake.ID, limit decimal.Decimal) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE customers SET credit_limit = ?, updated_at = ? WHERE id = ?`,
		limit,
		time.Now().UTC(),
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return customerdomain.ErrCustomerNotFound
	}
	return nil
}
