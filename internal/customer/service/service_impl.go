package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/vyaparai/vyaparai/internal/clock"
	customerdomain "github.com/vyaparai/vyaparai/internal/customer/domain"
	khatadomain "github.com/vyaparai/vyaparai/internal/khata/domain"
	"github.com/vyaparai/vyaparai/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Repo  customerdomain.Repository
	Khata khatadomain.Service
	Clock clock.Clock
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	repo  customerdomain.Repository
	khata khatadomain.Service
	clk   clock.Clock
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) customerdomain.Service {
	return &Service{
		repo:  p.Repo,
		khata: p.Khata,
		clk:   p.Clock,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
	}
}

// Create registers the customer and opens their khata in one go so a sale
// can be put on credit the moment registration finishes.
func (s *Service) Create(ctx context.Context, req customerdomain.CreateRequest) (*customerdomain.Customer, error) {
	now := s.clk.Now()
	customer := &customerdomain.Customer{
		ID:          s.genID.Generate(),
		StoreID:     req.StoreID,
		Name:        req.Name,
		Phone:       req.Phone,
		CreditLimit: req.CreditLimit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := customer.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByPhone(ctx, req.StoreID, customer.Phone)
	if err != nil {
		return nil, fmt.Errorf("find customer by phone: %w", err)
	}
	if existing != nil {
		return nil, customerdomain.ErrCustomerExists
	}

	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	if err := s.khata.EnsureBalance(ctx, customer.ID, customer.StoreID, customer.CreditLimit); err != nil {
		return nil, fmt.Errorf("open khata: %w", err)
	}

	s.log.Info("customer registered",
		zap.String("customer_id", customer.ID.String()),
		zap.String("store_id", customer.StoreID.String()),
	)
	return customer, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*customerdomain.Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrCustomerNotFound
	}
	return customer, nil
}

func (s *Service) List(ctx context.Context, storeID snowflake.ID, p pagination.Pagination) ([]*customerdomain.Customer, *pagination.PageInfo, error) {
	if p.PageSize <= 0 {
		p.PageSize = 50
	}
	customers, err := s.repo.List(ctx, storeID, p)
	if err != nil {
		return nil, nil, err
	}
	customers, pageInfo := pagination.BuildCursorPageInfo(customers, p.PageSize, func(c *customerdomain.Customer) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: c.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	return customers, pageInfo, nil
}

// UpdateCreditLimit moves the limit on the customer record and the khata
// balance row together. The khata copy is the one enforced at sale time.
func (s *Service) UpdateCreditLimit(ctx context.Context, id snowflake.ID, limit decimal.Decimal) (*customerdomain.Customer, error) {
	if limit.IsNegative() {
		return nil, customerdomain.ErrInvalidCreditLimit
	}
	customer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCreditLimit(ctx, id, limit); err != nil {
		return nil, err
	}
	if err := s.khata.UpdateCreditLimit(ctx, customer.ID, customer.StoreID, limit); err != nil {
		return nil, fmt.Errorf("update khata limit: %w", err)
	}
	customer.CreditLimit = limit
	return customer, nil
}
