package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/vyaparai/vyaparai/internal/clock"
	"github.com/vyaparai/vyaparai/internal/config"
	"github.com/vyaparai/vyaparai/internal/customer"
	"github.com/vyaparai/vyaparai/internal/gst"
	"github.com/vyaparai/vyaparai/internal/idempotency"
	"github.com/vyaparai/vyaparai/internal/khata"
	"github.com/vyaparai/vyaparai/internal/lock"
	"github.com/vyaparai/vyaparai/internal/logger"
	"github.com/vyaparai/vyaparai/internal/migration"
	obsmetrics "github.com/vyaparai/vyaparai/internal/observability/metrics"
	"github.com/vyaparai/vyaparai/internal/seed"
	"github.com/vyaparai/vyaparai/internal/server"
	"github.com/vyaparai/vyaparai/internal/store"
	"github.com/vyaparai/vyaparai/pkg/db"
	"go.uber.org/fx"
)

func newSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(int64(cfg.SnowflakeNodeID))
}

func main() {
	fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		obsmetrics.Module,
		db.Module,
		fx.Provide(newSnowflakeNode),
		migration.Module,
		idempotency.Module,
		lock.Module,
		gst.Module,
		seed.Module,
		khata.Module,
		customer.Module,
		store.Module,
		server.Module,
	).Run()
}
