package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accessdomain "github.com/smallbiznis/campus/internal/access/domain"
	auditdomain "github.com/smallbiznis/campus/internal/audit/domain"
	"github.com/smallbiznis/campus/internal/config"
	coursedomain "github.com/smallbiznis/campus/internal/course/domain"
	enrollmentdomain "github.com/smallbiznis/campus/internal/enrollment/domain"
	"github.com/smallbiznis/campus/internal/microsite"
	micrositedomain "github.com/smallbiznis/campus/internal/microsite/domain"
	"github.com/smallbiznis/campus/internal/observability"
	obslogger "github.com/smallbiznis/campus/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/campus/internal/observability/metrics"
	obstracing "github.com/smallbiznis/campus/internal/observability/tracing"
	"github.com/smallbiznis/campus/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	ObsConfig   observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
	Resolver    micrositedomain.Resolver
	Features    config.FeatureSource
	Counter     micrositedomain.Counter `optional:"true"`
	Log         *zap.Logger
}

func NewEngine(p EngineParams) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           p.ObsConfig.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		TenantAttributes: p.ObsConfig.TraceTenantAttributes,
	}))
	r.Use(obsmetrics.GinMiddleware(p.HTTPMetrics))
	r.Use(microsite.Middleware(p.Resolver))
	r.Use(microsite.OrgFilterMiddleware(p.Resolver, p.Features, p.Counter, p.Log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(p EngineParams) *gin.Engine {
	return NewEngine(p)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	enrollmentSvc enrollmentdomain.Service
	courseSvc     coursedomain.Service
	accessSvc     accessdomain.Service
	auditSvc      auditdomain.Service
	micrositeSvc  micrositedomain.Service
	limiter       *ratelimit.EnrollmentLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	EnrollmentSvc enrollmentdomain.Service
	CourseSvc     coursedomain.Service
	AccessSvc     accessdomain.Service
	AuditSvc      auditdomain.Service
	MicrositeSvc  micrositedomain.Service
	Limiter       *ratelimit.EnrollmentLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		enrollmentSvc: p.EnrollmentSvc,
		courseSvc:     p.CourseSvc,
		accessSvc:     p.AccessSvc,
		auditSvc:      p.AuditSvc,
		micrositeSvc:  p.MicrositeSvc,
		limiter:       p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerCourseRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", Identity())

	enrollment := api.Group("/enrollment/v1", RequireUser())
	{
		enrollment.POST("/enrollment", s.RateLimitEnrollment(), s.Enroll)
		enrollment.GET("/enrollment/:course_id", s.GetEnrollment)
		enrollment.DELETE("/enrollment/:course_id", s.Unenroll)
		enrollment.GET("/enrollments", s.ListEnrollments)
		enrollment.PUT("/enrollment/:course_id/attributes", s.SetEnrollmentAttribute)
		enrollment.POST("/manual", s.RateLimitEnrollment(), s.ManualEnrollment)
	}

	api.POST("/user/v1/account", RequireUser(), s.RegisterAccount)
	api.GET("/microsite/v1/config", s.GetMicrositeConfig)
	api.GET("/courses/v1/courses/:course_id", s.GetCourse)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api", Identity(), RequireUser(), s.RequireGlobalStaff())

	admin.POST("/courses/v1/courses", s.CreateCourse)
	admin.GET("/enrollment/v1/manual/audits", s.ListManualAudits)
	admin.POST("/access/v1/roles", s.GrantRole)
	admin.DELETE("/access/v1/roles", s.RevokeRole)

	microsites := admin.Group("/microsite/v1/microsites")
	{
		microsites.GET("", s.ListMicrosites)
		microsites.POST("", s.CreateMicrosite)
		microsites.GET("/:id", s.GetMicrosite)
		microsites.PUT("/:id", s.UpdateMicrosite)
		microsites.DELETE("/:id", s.DeleteMicrosite)
		microsites.GET("/:id/history", s.ListMicrositeHistory)
	}
}

func (s *Server) registerCourseRoutes() {
	s.engine.GET("/courses/*path", Identity(), s.CoursePage)
	s.engine.GET("/certificates/*path", Identity(), s.CertificatePage)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
