package microsite

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/campus/internal/config"
	"github.com/smallbiznis/campus/internal/coursekey"
	"github.com/smallbiznis/campus/internal/microsite/domain"
	obscontext "github.com/smallbiznis/campus/internal/observability/context"
	"github.com/smallbiznis/campus/internal/observability/logger"
	"github.com/smallbiznis/campus/internal/observability/metrics"
	"go.uber.org/zap"
)

// Middleware binds the microsite overlay for the request and always clears
// it on the way out, including when a later handler panics.
func Middleware(resolver domain.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := resolver.OnRequestStart(c.Request.Context(), c.Request.Host)
		defer resolver.OnRequestEnd(ctx)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OrgFilterMiddleware answers 404 for course and certificate URLs whose
// organization belongs to a different microsite.
func OrgFilterMiddleware(resolver domain.Resolver, features config.FeatureSource, counter domain.Counter, log *zap.Logger) gin.HandlerFunc {
	log = log.Named("microsite.org_filter")
	return func(c *gin.Context) {
		if features != nil && !features.Features().AdvancedSecurity {
			c.Next()
			return
		}

		kind := checkKind(c.Request.URL.Path)
		if kind == "" {
			c.Next()
			return
		}
		key, ok := coursekey.FromPath(c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}

		ctx := obscontext.WithOrg(c.Request.Context(), key.Org)
		c.Request = c.Request.WithContext(ctx)

		allowed, reason, err := resolver.OrgAllowed(ctx, key.Org)
		if err != nil {
			logger.WithContext(ctx, log).Error("org filter lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{"type": "internal_error", "message": "internal error"},
			})
			return
		}
		if !allowed {
			if counter != nil {
				err := counter.Increment(ctx, metrics.MicrositeOrgFilterDeny, map[string]string{
					"org":        key.Org,
					"reason":     reason,
					"check_kind": kind,
					"microsite":  obscontext.MicrositeFromContext(ctx),
				})
				if err != nil {
					log.Debug("org filter counter failed", zap.Error(err))
				}
			}
			logger.WithContext(ctx, log).Info("cross-microsite request denied",
				zap.String("reason", reason),
				zap.String("check_kind", kind),
			)
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error": gin.H{"type": "not_found", "message": "not found"},
			})
			return
		}
		c.Next()
	}
}

func checkKind(path string) string {
	switch {
	case strings.HasPrefix(path, "/courses/"):
		return "course"
	case strings.HasPrefix(path, "/certificates/"):
		return "certificate"
	default:
		return ""
	}
}
