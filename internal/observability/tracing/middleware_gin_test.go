package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/campus/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func spanAttrs(t *testing.T, cfg MiddlewareConfig, bind gin.HandlerFunc) map[attribute.Key]attribute.Value {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(t.Context())
	})

	r := gin.New()
	r.Use(GinMiddleware(cfg))
	r.Use(bind)
	r.GET("/courses/*path", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/courses/course-v1:OrgA+Intro+2024/about", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestGinMiddlewareTagsTenant(t *testing.T) {
	attrs := spanAttrs(t, MiddlewareConfig{TenantAttributes: true}, func(c *gin.Context) {
		ctx := obscontext.WithMicrosite(c.Request.Context(), "one")
		ctx = obscontext.WithOrg(ctx, "OrgA")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	assert.Equal(t, "one", attrs[AttrMicrosite].AsString())
	assert.Equal(t, "OrgA", attrs[AttrCourseOrg].AsString())
	assert.Equal(t, "/courses/*path", attrs["http.route"].AsString())
}

func TestGinMiddlewareDefaultTenant(t *testing.T) {
	attrs := spanAttrs(t, MiddlewareConfig{TenantAttributes: true}, func(c *gin.Context) { c.Next() })
	assert.Equal(t, "default", attrs[AttrMicrosite].AsString())
	assert.NotContains(t, attrs, AttrCourseOrg)
}

func TestGinMiddlewareTenantAttributesOff(t *testing.T) {
	attrs := spanAttrs(t, MiddlewareConfig{}, func(c *gin.Context) { c.Next() })
	assert.NotContains(t, attrs, AttrMicrosite)
}
