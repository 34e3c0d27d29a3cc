package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	accessdomain "github.com/smallbiznis/campus/internal/access/domain"
	"github.com/smallbiznis/campus/internal/identity"
	obscontext "github.com/smallbiznis/campus/internal/observability/context"
)

// Identity headers are set by the authenticating proxy in front of the service.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
	HeaderEmail    = "X-User-Email"
)

// Identity binds the upstream-authenticated user, or Anonymous, to the request.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := identity.Parse(c.GetHeader(HeaderUserID), c.GetHeader(HeaderUsername), c.GetHeader(HeaderEmail))
		ctx := identity.WithUser(c.Request.Context(), user)
		if user.IsAuthenticated() {
			ctx = obscontext.WithActor(ctx, "user", strconv.FormatInt(user.ID, 10))
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identity.UserFromContext(c.Request.Context()).IsAuthenticated() {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// RequireGlobalStaff admits staff holding the role across every organization.
func (s *Server) RequireGlobalStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := identity.UserFromContext(c.Request.Context())
		if !s.accessSvc.IsStaff(c.Request.Context(), user, accessdomain.GlobalScope) {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) identity.User {
	return identity.UserFromContext(c.Request.Context())
}

// RateLimitEnrollment throttles enrollment writes per learner.
func (s *Server) RateLimitEnrollment() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		res := s.limiter.Allow(c.Request.Context(), currentUser(c).ID)
		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
