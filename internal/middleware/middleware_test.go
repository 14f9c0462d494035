package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"EduPulse/internal/domain/models"
	"EduPulse/internal/service/ratelimit"
	xhttp "EduPulse/pkg/http"
	applogger "EduPulse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEcho mirrors pkg/http.Server error rendering for AppError.
func newEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) { _ = xhttp.AppErrorResponse(c, err) }
	e.GET("/who", func(c echo.Context) error {
		who, _ := IdentityFromContext(c.Request().Context())
		return c.JSON(http.StatusOK, who)
	}, mw...)
	return e
}

func TestAuthAPIKey(t *testing.T) {
	auth := NewAPIKeyAuthenticator("", map[string]models.Identity{
		"k1": {UserID: "instructor-1", Email: "t1@example.com"},
	})
	e := newEcho(Auth(auth, applogger.Nop()))

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"valid", "k1", http.StatusOK},
		{"wrong", "k2", http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				var who models.Identity
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &who))
				assert.Equal(t, "instructor-1", who.UserID)
			}
		})
	}
}

func TestAnonymousAuthenticator(t *testing.T) {
	who, err := AnonymousAuthenticator{}.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "anonymous", who.UserID)
}

func TestRateLimit(t *testing.T) {
	lim := ratelimit.NewTokenBucket(2, time.Minute)
	e := newEcho(RateLimit(lim, applogger.Nop()))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/who", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get(HeaderRateLimitLimit))
	assert.Equal(t, "1", first.Header().Get(HeaderRateLimitRemaining))

	assert.Equal(t, http.StatusOK, do().Code)

	third := do()
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "0", third.Header().Get(HeaderRateLimitRemaining))
	assert.NotEmpty(t, third.Header().Get(echo.HeaderRetryAfter))
	assert.Contains(t, third.Body.String(), "ERR_TOO_MANY_REQUESTS")
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	e := newEcho(RateLimit(brokenLimiter{}, applogger.Nop()))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/who", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderRateLimitLimit))
}

func TestRateLimitKeyPrefersIdentity(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1"
	c := e.NewContext(req, httptest.NewRecorder())
	assert.Equal(t, "ip:192.0.2.1", RateLimitKey(c))

	c.SetRequest(req.WithContext(WithIdentity(req.Context(), models.Identity{UserID: "u1"})))
	assert.Equal(t, "user:u1", RateLimitKey(c))
}
