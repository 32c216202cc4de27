package bill

import (
	"github.com/smallbiznis/sekarnet/internal/bill/repository"
	"github.com/smallbiznis/sekarnet/internal/bill/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bill.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
