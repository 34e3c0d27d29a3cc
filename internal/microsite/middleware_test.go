package microsite

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/campus/internal/cache"
	"github.com/smallbiznis/campus/internal/clock"
	"github.com/smallbiznis/campus/internal/config"
	"github.com/smallbiznis/campus/internal/microsite/domain"
	"github.com/smallbiznis/campus/internal/microsite/repository"
	"github.com/smallbiznis/campus/internal/microsite/service"
	"github.com/smallbiznis/campus/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type denyCounter struct {
	reasons []string
}

func (d *denyCounter) Increment(_ context.Context, _ string, tags map[string]string) error {
	if reason, ok := tags["reason"]; ok {
		d.reasons = append(d.reasons, reason)
	}
	return nil
}

type failingCounter struct{}

func (failingCounter) Increment(context.Context, string, map[string]string) error {
	return errors.New("exporter down")
}

func newRouter(t *testing.T, features config.Features) (*gin.Engine, domain.Service, *denyCounter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	source := config.NewStaticFeatures(features)
	svc := service.NewService(service.Params{
		DB:       dbtest.New(t, &domain.Microsite{}, &domain.History{}),
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Repo:     repository.Provide(),
		Features: source,
		Overlays: cache.NewMemoryLookup[domain.Overlay](time.Minute),
		Orgs:     cache.NewMemoryLookup[[]string](time.Minute),
	})

	ctx := context.Background()
	_, err = svc.Create(ctx, domain.SaveRequest{Key: "one", Subdomain: "one", Values: map[string]any{"course_org_filter": "OrgA", "platform_name": "One"}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.SaveRequest{Key: "two", Subdomain: "two", Values: map[string]any{"course_org_filter": "OrgB"}})
	require.NoError(t, err)

	counter := &denyCounter{}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Middleware(svc))
	r.Use(OrgFilterMiddleware(svc, source, counter, zap.NewNop()))
	r.GET("/courses/*path", func(c *gin.Context) {
		c.String(http.StatusOK, "%v", svc.GetValue(c.Request.Context(), "platform_name", "Campus"))
	})
	r.GET("/certificates/*path", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r, svc, counter
}

func serve(r http.Handler, host, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Host = host
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOrgFilterBlocksCrossTenantCourses(t *testing.T) {
	r, _, counter := newRouter(t, config.Features{UseMicrosites: true, AdvancedSecurity: true})

	w := serve(r, "one.example.com", "/courses/course-v1:OrgA+Intro+2024/about")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "One", w.Body.String())

	w = serve(r, "two.example.com", "/courses/course-v1:OrgA+Intro+2024/about")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, "www.example.com", "/courses/OrgA/Intro/2024/about")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, "www.example.com", "/courses/course-v1:OrgZ+Intro+2024/about")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Campus", w.Body.String())

	w = serve(r, "two.example.com", "/certificates/user/7/course/course-v1:OrgA+Intro+2024")
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, []string{
		domain.DenyOutsideFilter,
		domain.DenyClaimedElsewhere,
		domain.DenyOutsideFilter,
	}, counter.reasons)
}

func TestOrgFilterDisabledWithoutAdvancedSecurity(t *testing.T) {
	r, _, _ := newRouter(t, config.Features{UseMicrosites: true, AdvancedSecurity: false})

	w := serve(r, "two.example.com", "/courses/course-v1:OrgA+Intro+2024/about")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareClearsOverlayAfterPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, svc, _ := newRouter(t, config.Features{UseMicrosites: true})

	var captured context.Context
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Middleware(svc))
	r.GET("/boom", func(c *gin.Context) {
		captured = c.Request.Context()
		require.True(t, svc.IsRequestInMicrosite(captured))
		panic("boom")
	})

	w := serve(r, "one.example.com", "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, captured)
	assert.False(t, svc.IsRequestInMicrosite(captured))
	assert.Equal(t, "Campus", svc.GetValue(captured, "platform_name", "Campus"))
}

func TestOrgFilterLogsCounterFailure(t *testing.T) {
	features := config.Features{UseMicrosites: true, AdvancedSecurity: true}
	_, svc, _ := newRouter(t, features)

	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(Middleware(svc))
	r.Use(OrgFilterMiddleware(svc, config.NewStaticFeatures(features), failingCounter{}, zap.New(core)))
	r.GET("/courses/*path", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, "two.example.com", "/courses/course-v1:OrgA+Intro+2024/about")
	assert.Equal(t, http.StatusNotFound, w.Code)

	failures := logs.FilterMessage("org filter counter failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.DebugLevel, failures[0].Level)
	assert.Equal(t, 1, logs.FilterMessage("cross-microsite request denied").Len())
}
