package seed

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/vyaparai/vyaparai/internal/clock"
	"github.com/vyaparai/vyaparai/internal/config"
	gstdomain "github.com/vyaparai/vyaparai/internal/gst/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Repo  gstdomain.Repository
	Rates *config.RateConfigHolder
	Clock clock.Clock
	Log   *zap.Logger
	GenID *snowflake.Node
}

// Run populates the rate table from the configured defaults when the store
// comes up against an empty database. Existing rows always win; the seeder
// never overwrites curated rates.
func Run(p Params) error {
	ctx := context.Background()
	log := p.Log.Named("seed")

	existing, err := p.Repo.ScanCategories(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	rates := p.Rates.Get()
	now := p.Clock.Now()

	for _, cc := range rates.Categories {
		category := &gstdomain.Category{
			ID:          p.GenID.Generate(),
			Code:        cc.Code,
			Name:        cc.Name,
			HSNPrefix:   cc.HSNPrefix,
			Rate:        cc.Rate,
			CessRate:    decimal.NewFromFloat(cc.CessRate),
			Description: cc.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := category.Validate(); err != nil {
			log.Warn("skipping invalid seed category", zap.String("code", cc.Code), zap.Error(err))
			continue
		}
		if err := p.Repo.CreateCategory(ctx, category); err != nil {
			return err
		}
	}

	for hsn, categoryCode := range rates.HSNCodes {
		mapping := &gstdomain.HSNMapping{
			ID:           p.GenID.Generate(),
			HSNCode:      hsn,
			CategoryCode: categoryCode,
			CreatedAt:    now,
		}
		if err := p.Repo.CreateHSNMapping(ctx, mapping); err != nil {
			return err
		}
	}

	log.Info("seeded rate table",
		zap.Int("categories", len(rates.Categories)),
		zap.Int("hsn_mappings", len(rates.HSNCodes)),
	)
	return nil
}

var Module = fx.Module("seed",
	fx.Invoke(Run),
)
