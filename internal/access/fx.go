package access

import (
	"github.com/smallbiznis/campus/internal/access/domain"
	"github.com/smallbiznis/campus/internal/access/repository"
	"github.com/smallbiznis/campus/internal/access/service"
	"go.uber.org/fx"
)

var Module = fx.Module("access.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewEnforcer),
	fx.Provide(service.NewService),
	fx.Provide(func(s domain.Service) domain.Policy { return s }),
)
