package installation

import (
	"github.com/smallbiznis/sekarnet/internal/installation/repository"
	"github.com/smallbiznis/sekarnet/internal/installation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("installation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
