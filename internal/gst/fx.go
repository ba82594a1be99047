package gst

import (
	"time"

	"github.com/vyaparai/vyaparai/internal/cache"
	"github.com/vyaparai/vyaparai/internal/clock"
	"github.com/vyaparai/vyaparai/internal/config"
	"github.com/vyaparai/vyaparai/internal/gst/repository"
	"github.com/vyaparai/vyaparai/internal/gst/service"
	"go.uber.org/fx"
)

func newRateCache(cfg config.Config, clk clock.Clock) cache.RateCache {
	return cache.NewRateCacheWithOptions(time.Duration(cfg.RateCacheTTLSeconds)*time.Second, clk)
}

var Module = fx.Module("gst.service",
	fx.Provide(newRateCache),
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
