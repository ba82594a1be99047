package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/vyaparai/vyaparai/pkg/db/pagination"
)

type Repository interface {
	Create(ctx context.Context, customer *Customer) error
	FindByID(ctx context.Context, id snowflake.ID) (*Customer, error)
	FindByPhone(ctx context.Context, storeID snowflake.ID, phone string) (*Customer, error)
	List(ctx context.Context, storeID snowflake.ID, p pagination.Pagination) ([]*Customer, error)
	UpdateCreditLimit(ctx context.Context, id snowflake.ID, limit decimal.Decimal) error
}

type CreateRequest struct {
	StoreID     snowflake.ID    `json:"store_id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Customer, error)
	Get(ctx context.Context, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, storeID snowflake.ID, p pagination.Pagination) ([]*Customer, *pagination.PageInfo, error)
	UpdateCreditLimit(ctx context.Context, id snowflake.ID, limit decimal.Decimal) (*Customer, error)
}
