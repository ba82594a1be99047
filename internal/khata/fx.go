package khata

import (
	"github.com/vyaparai/vyaparai/internal/khata/repository"
	"github.com/vyaparai/vyaparai/internal/khata/service"
	"go.uber.org/fx"
)

var Module = fx.Module("khata",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
