package enrollment

import (
	accessdomain "github.com/smallbiznis/campus/internal/access/domain"
	coursedomain "github.com/smallbiznis/campus/internal/course/domain"
	"github.com/smallbiznis/campus/internal/enrollment/domain"
	"github.com/smallbiznis/campus/internal/enrollment/repository"
	"github.com/smallbiznis/campus/internal/enrollment/service"
	"github.com/smallbiznis/campus/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("enrollment.service",
	fx.Provide(repository.Provide),
	fx.Provide(
		func(s coursedomain.Service) domain.CourseStore { return s },
		func(s accessdomain.Service) domain.AccessPolicy { return s },
		func(s accessdomain.Service) domain.AllowList { return s },
		func(m *metrics.Metrics) domain.Counter { return m },
	),
	fx.Provide(service.NewService),
)
