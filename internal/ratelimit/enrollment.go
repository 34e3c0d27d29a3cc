package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/campus/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyEnrollmentWrites = "campus:ratelimit:enrollment:user:%d"

// EnrollmentLimiter throttles enrollment writes per learner. It fails open:
// an unreachable Redis never blocks an enrollment.
type EnrollmentLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

type Params struct {
	fx.In

	Config config.Config
	Client redis.UniversalClient `optional:"true"`
	Log    *zap.Logger
}

func NewEnrollmentLimiter(p Params) *EnrollmentLimiter {
	cfg := p.Config.RateLimit
	if !cfg.Enabled || p.Client == nil || cfg.EnrollmentRate <= 0 || cfg.EnrollmentBurst <= 0 {
		return nil
	}
	return &EnrollmentLimiter{
		bucket: NewTokenBucket(p.Client),
		rate:   cfg.EnrollmentRate,
		burst:  cfg.EnrollmentBurst,
		log:    p.Log.Named("ratelimit.enrollment"),
	}
}

func (l *EnrollmentLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *EnrollmentLimiter) Allow(ctx context.Context, userID int64) *Result {
	if !l.Enabled() {
		return &Result{Allowed: true}
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyEnrollmentWrites, userID), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing", zap.Int64("user_id", userID), zap.Error(err))
		return &Result{Allowed: true, Limit: l.burst}
	}
	return res
}
