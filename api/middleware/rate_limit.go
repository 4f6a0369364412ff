package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/muhamadhazim/fishit-marketplace/api/responses"
	pkgerrors "github.com/muhamadhazim/fishit-marketplace/pkg/errors"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
	"github.com/muhamadhazim/fishit-marketplace/pkg/ratelimit"
)

type tierLimiter interface {
	Allow(tier ratelimit.Tier, key string) (bool, time.Duration)
}

// RateLimit throttles each client IP within tier. Rejected requests get 429
// with a Retry-After header.
func RateLimit(limiter tierLimiter, tier ratelimit.Tier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || tier.PerMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			ok, wait := limiter.Allow(tier, ip)
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			retryAfter := ratelimit.RetryAfterSeconds(wait)
			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"event":       "rate_limit.blocked",
					"tier":        tier.Name,
					"ip":          ip,
					"retry_after": retryAfter,
				})
				logg.Warn(ctx, "request throttled")
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests, slow down").
				WithDetails(map[string]any{"retry_after": retryAfter}))
		})
	}
}
