package course

import (
	"github.com/smallbiznis/campus/internal/course/repository"
	"github.com/smallbiznis/campus/internal/course/service"
	"go.uber.org/fx"
)

var Module = fx.Module("course.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
