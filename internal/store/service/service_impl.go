package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/vyaparai/vyaparai/internal/clock"
	storedomain "github.com/vyaparai/vyaparai/internal/store/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Repo  storedomain.Repository
	Clock clock.Clock
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	repo  storedomain.Repository
	clk   clock.Clock
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) storedomain.Service {
	return &Service{
		repo:  p.Repo,
		clk:   p.Clock,
		log:   p.Log.Named("store.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req storedomain.CreateRequest) (*storedomain.Store, error) {
	now := s.clk.Now()
	store := &storedomain.Store{
		ID:        s.genID.Generate(),
		Code:      slug.Make(req.Name),
		Name:      req.Name,
		GSTIN:     req.GSTIN,
		StateCode: req.StateCode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByCode(ctx, store.Code)
	if err != nil {
		return nil, fmt.Errorf("find store by code: %w", err)
	}
	if existing != nil {
		return nil, storedomain.ErrStoreExists
	}

	if err := s.repo.Create(ctx, store); err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	s.log.Info("store registered",
		zap.String("store_id", store.ID.String()),
		zap.String("code", store.Code),
		zap.String("state_code", store.StateCode),
	)
	return store, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*storedomain.Store, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, storedomain.ErrStoreNotFound
	}
	return store, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*storedomain.Store, error) {
	store, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, storedomain.ErrStoreNotFound
	}
	return store, nil
}

func (s *Service) List(ctx context.Context) ([]*storedomain.Store, error) {
	return s.repo.List(ctx)
}
