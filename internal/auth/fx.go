package auth

import (
	"github.com/smallbiznis/sekarnet/internal/auth/repository"
	"github.com/smallbiznis/sekarnet/internal/auth/service"
	"github.com/smallbiznis/sekarnet/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	token.Module,
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
