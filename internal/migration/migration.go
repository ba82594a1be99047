package migration

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/vyaparai/vyaparai/internal/config"
	customerdomain "github.com/vyaparai/vyaparai/internal/customer/domain"
	gstdomain "github.com/vyaparai/vyaparai/internal/gst/domain"
	"github.com/vyaparai/vyaparai/internal/idempotency"
	khatadomain "github.com/vyaparai/vyaparai/internal/khata/domain"
	storedomain "github.com/vyaparai/vyaparai/internal/store/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Params struct {
	fx.In

	DB  *gorm.DB
	Cfg config.Config
	Log *zap.Logger
}

// Run applies schema migrations at startup. Versioned SQL migrations are
// written for postgres; other dialects fall back to the model-driven
// migrator, which is enough for local sqlite development.
func Run(p Params) error {
	log := p.Log.Named("migration")

	if p.Cfg.DBType != "postgres" {
		log.Warn("versioned migrations require postgres, using auto migration",
			zap.String("db_type", p.Cfg.DBType),
		)
		return p.DB.AutoMigrate(
			&storedomain.Store{},
			&customerdomain.Customer{},
			&gstdomain.Category{},
			&gstdomain.HSNMapping{},
			&khatadomain.CustomerBalance{},
			&khatadomain.CreditTransaction{},
			&idempotency.Record{},
		)
	}

	sqlDB, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, p.Cfg.DBName, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Info("schema up to date", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

var Module = fx.Module("migration",
	fx.Invoke(Run),
)
