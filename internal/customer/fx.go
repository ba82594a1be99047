package customer

import (
	"github.com/vyaparai/vyaparai/internal/customer/repository"
	"github.com/vyaparai/vyaparai/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
