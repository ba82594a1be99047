package store

import (
	"github.com/vyaparai/vyaparai/internal/store/repository"
	"github.com/vyaparai/vyaparai/internal/store/service"
	"go.uber.org/fx"
)

var Module = fx.Module("store",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
