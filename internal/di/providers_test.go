package di

import (
	"context"
	"testing"

	mid "EduPulse/internal/middleware"
	internalrepo "EduPulse/internal/repository"
	"EduPulse/internal/service/ratelimit"
	"EduPulse/pkg/config"
	applogger "EduPulse/pkg/logger"
	"EduPulse/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg
}

func TestProvideNotifyQueue(t *testing.T) {
	cfg := defaultConfig(t)
	q, err := ProvideNotifyQueue(cfg, nil, applogger.Nop())
	require.NoError(t, err)
	assert.Nil(t, q, "disabled")

	cfg.Analytics.Notify.Enabled = true
	q, err = ProvideNotifyQueue(cfg, nil, applogger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &queue.MemoryQueue{}, q)

	cfg.Analytics.Notify.Queue = "redis"
	_, err = ProvideNotifyQueue(cfg, nil, applogger.Nop())
	assert.Error(t, err, "redis queue without a client")
}

func TestProvideNotifier(t *testing.T) {
	cfg := defaultConfig(t)
	n, err := ProvideNotifier(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, n)

	cfg.Analytics.Notify.Enabled = true
	cfg.Email.BaseURL = "http://mail.local"
	cfg.Email.ClientID = "id"
	cfg.Email.ClientSecret = "secret"
	q := queue.NewMemoryQueue(applogger.Nop(), nil)
	n, err = ProvideNotifier(cfg, q)
	require.NoError(t, err)
	assert.NotNil(t, n)
}

func TestProvideRateLimiter(t *testing.T) {
	cfg := defaultConfig(t)
	limiter, cleanup := ProvideRateLimiter(cfg, nil)
	assert.IsType(t, &ratelimit.TokenBucket{}, limiter)
	cleanup()

	cfg.RateLimit.Algorithm = "fixed_window"
	limiter, cleanup = ProvideRateLimiter(cfg, nil)
	defer cleanup()
	require.IsType(t, &ratelimit.FixedWindow{}, limiter)

	ctx := context.Background()
	for i := 0; i < cfg.RateLimit.Limit; i++ {
		d, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i+1)
	}
	d, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)

	cfg.RateLimit.Enabled = false
	limiter, _ = ProvideRateLimiter(cfg, nil)
	assert.Nil(t, limiter)
}

func TestProvideAuthenticator(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Auth.APIKeys = map[string]config.AuthIdentity{"k": {UserID: "u1"}}
	assert.IsType(t, &mid.APIKeyAuthenticator{}, ProvideAuthenticator(cfg))

	cfg.Auth.Enabled = false
	assert.IsType(t, mid.AnonymousAuthenticator{}, ProvideAuthenticator(cfg))
}

func TestProvideAuditSinkDefaultsToLog(t *testing.T) {
	cfg := defaultConfig(t)
	sink, err := ProvideAuditSink(cfg, nil, nil, applogger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &internalrepo.LogAuditSink{}, sink)

	cfg.Audit.Sink = "kafka"
	_, err = ProvideAuditSink(cfg, nil, nil, applogger.Nop())
	assert.Error(t, err)
}
