package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalYAML = `
environment: test
auth:
  api_keys:
    k1:
      user_id: instructor-1
      email: t1@example.com
`

func TestDefaults(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, int64(5<<20), c.Analytics.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, c.Analytics.ProcessingTimeout)
	assert.Equal(t, 5, c.Analytics.Forecast.MinPoints)
	assert.Equal(t, 1.5, c.Analytics.Cleaner.OutlierThreshold)
	assert.Equal(t, "log", c.Audit.Sink)
	assert.Equal(t, "memory", c.RateLimit.Backend)
	assert.Equal(t, "token_bucket", c.RateLimit.Algorithm)
	assert.Equal(t, "info", c.Log.Level)
	assert.True(t, c.Auth.Enabled)
	assert.Equal(t, "memory", c.Analytics.Notify.Queue)
	assert.Equal(t, 3, c.Analytics.Notify.RetryLimit)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := writeConfig(t, minimalYAML+`
server:
  port: 9090
analytics:
  processing_timeout: 5s
  forecast:
    min_points: 7
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 5*time.Second, c.Analytics.ProcessingTimeout)
	assert.Equal(t, 7, c.Analytics.Forecast.MinPoints)
	assert.Equal(t, 30, c.Analytics.Forecast.Horizon, "untouched defaults survive")
	assert.Equal(t, "instructor-1", c.Auth.APIKeys["k1"].UserID)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, minimalYAML+`
server:
  port: 9090
log:
  level: debug
`)
	t.Setenv("EDUPULSE_SERVER_PORT", "7070")
	t.Setenv("EDUPULSE_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("EDUPULSE_AUDIT_SINK", "kafka")
	t.Setenv("EDUPULSE_ANALYTICS_PROCESSING_TIMEOUT", "45s")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, c.Server.Port)
	assert.Equal(t, "debug", c.Log.Level, "unset variables keep the file value")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "kafka", c.Audit.Sink)
	assert.Equal(t, 45*time.Second, c.Analytics.ProcessingTimeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad log level", "log:\n  level: loud\n"},
		{"bad outlier action", "analytics:\n  cleaner:\n    outlier_action: explode\n"},
		{"zero workers", "analytics:\n  workers: 0\n"},
		{"kafka sink without brokers", "audit:\n  sink: kafka\n"},
		{"clickhouse sink without host", "audit:\n  sink: clickhouse\n"},
		{"redis limiter without host", "rate_limit:\n  backend: redis\n"},
		{"unknown limiter algorithm", "rate_limit:\n  algorithm: leaky\n"},
		{"notify without email", "analytics:\n  notify:\n    enabled: true\n"},
		{"redis notify queue without host", "analytics:\n  notify:\n    enabled: true\n    queue: redis\nemail:\n  base_url: http://mail\n  client_id: id\n  client_secret: s\n"},
		{"unknown notify queue", "analytics:\n  notify:\n    queue: sqs\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, minimalYAML+tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRequiresAPIKeysWhenAuthEnabled(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: test\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "environment: test\nauth:\n  api_keys:\n    k2:\n      email: x@example.com\n"))
	assert.Error(t, err, "an api key needs a user id")

	c, err := Load(writeConfig(t, "environment: test\nauth:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.False(t, c.Auth.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
