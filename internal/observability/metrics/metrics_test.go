package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("org", "MITx"),
		attribute.String("user_id", "456"),
		attribute.String("mode", "verified"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "org" && attrs[1].Key != "org" {
		t.Fatalf("expected org to be retained")
	}
	if attrs[0].Key != "mode" && attrs[1].Key != "mode" {
		t.Fatalf("expected mode to be retained")
	}
}

func TestIncrementUnknownCounter(t *testing.T) {
	m, err := New(Config{ServiceName: "test"}, noop.NewMeterProvider())
	require.NoError(t, err)

	require.NoError(t, m.Increment(context.Background(), CourseEnrollment, map[string]string{"org": "MITx"}))
	assert.ErrorIs(t, m.Increment(context.Background(), "nope", nil), ErrUnknownCounter)

	var nilMetrics *Metrics
	assert.NoError(t, nilMetrics.Increment(context.Background(), "nope", nil))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetricsWithRegisterer(registry, Config{ServiceName: "test", Environment: "test"})
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/health", "200")))
}
