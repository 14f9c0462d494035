package middleware

import (
	"math"
	"strconv"

	"EduPulse/internal/service/ratelimit"
	xhttp "EduPulse/pkg/http"
	applogger "EduPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// RateLimitKey identifies the caller: the authenticated user, else the client IP.
func RateLimitKey(c echo.Context) string {
	if who, ok := IdentityFromContext(c.Request().Context()); ok && who.UserID != "" {
		return "user:" + who.UserID
	}
	return "ip:" + c.RealIP()
}

// RateLimit rejects requests over budget with 429. Limiter errors let the request through.
func RateLimit(lim ratelimit.Limiter, l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := RateLimitKey(c)
			d, err := lim.Allow(c.Request().Context(), key)
			if err != nil {
				l.Warn("rate limiter unavailable", applogger.String("key", key), applogger.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
			h.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
			h.Set(HeaderRateLimitReset, strconv.Itoa(int(math.Ceil(d.Reset.Seconds()))))
			if !d.Allowed {
				h.Set(echo.HeaderRetryAfter, h.Get(HeaderRateLimitReset))
				return xhttp.TooManyRequestsError("rate limit exceeded").
					WithParam("retry_after_seconds", int(math.Ceil(d.Reset.Seconds())))
			}
			return next(c)
		}
	}
}
