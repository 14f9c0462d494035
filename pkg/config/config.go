package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	applogger "EduPulse/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. EDUPULSE_SERVER_PORT.
const EnvPrefix = "edupulse"

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Server      ServerConfig     `yaml:"server"`
	Log         applogger.Config `yaml:"log"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Analytics   AnalyticsConfig  `yaml:"analytics"`
	Audit       AuditConfig      `yaml:"audit"`
	Events      EventsConfig     `yaml:"events"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis"`
	RateLimit   RateLimitConfig  `yaml:"rate_limit"`
	Auth        AuthConfig       `yaml:"auth"`
	Email       EmailConfig      `yaml:"email"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

type AnalyticsConfig struct {
	MaxUploadBytes    int64          `yaml:"max_upload_bytes" default:"5242880" validate:"min=1"`
	Workers           int            `yaml:"workers" default:"4" validate:"min=1,max=64"`
	ProcessingTimeout time.Duration  `yaml:"processing_timeout" default:"30s" validate:"min=1s"`
	ExportPrecision   int32          `yaml:"export_precision" default:"6" validate:"min=0,max=15"`
	ChartMaxPoints    int            `yaml:"chart_max_points" default:"100" validate:"min=2"`
	Cleaner           CleanerConfig  `yaml:"cleaner"`
	Analyzer          AnalyzerConfig `yaml:"analyzer"`
	Forecast          ForecastConfig `yaml:"forecast"`
	Notify            NotifyConfig   `yaml:"notify"`
}

type CleanerConfig struct {
	MaxAbsValue      float64 `yaml:"max_abs_value" default:"1e308" validate:"gt=0"`
	OutlierMethod    string  `yaml:"outlier_method" default:"iqr" validate:"oneof=iqr zscore"`
	OutlierThreshold float64 `yaml:"outlier_threshold" default:"1.5" validate:"gt=0"`
	OutlierAction    string  `yaml:"outlier_action" default:"clip" validate:"oneof=flag clip drop"`
	MinOutlierPoints int     `yaml:"min_outlier_points" default:"4" validate:"min=3"`
	Imputation       string  `yaml:"imputation" default:"linear" validate:"oneof=linear ffill"`
	Normalization    string  `yaml:"normalization" default:"none" validate:"oneof=none index max_abs"`
}

type AnalyzerConfig struct {
	SignificanceThreshold float64 `yaml:"significance_threshold" default:"0.01" validate:"gte=0"`
	RecentWindow          int     `yaml:"recent_window" default:"7" validate:"min=2"`
	MinTrendPoints        int     `yaml:"min_trend_points" default:"2" validate:"min=2"`
	Confidence            float64 `yaml:"confidence" default:"0.95" validate:"gt=0,lt=1"`
}

type ForecastConfig struct {
	MinPoints     int     `yaml:"min_points" default:"5" validate:"min=2"`
	Horizon       int     `yaml:"horizon" default:"30" validate:"min=1,max=365"`
	Method        string  `yaml:"method" default:"linear" validate:"oneof=linear holt"`
	Alpha         float64 `yaml:"alpha" default:"0.5" validate:"gt=0,lte=1"`
	Beta          float64 `yaml:"beta" default:"0.3" validate:"gt=0,lte=1"`
	IntervalWidth float64 `yaml:"interval_width" default:"2" validate:"gt=0"`
}

// NotifyConfig controls the email summary sent after an analysis.
type NotifyConfig struct {
	Enabled    bool          `yaml:"enabled" default:"false"`
	Timeout    time.Duration `yaml:"timeout" default:"10s"`
	// Queue selects where pending emails wait for delivery.
	Queue      string        `yaml:"queue" default:"memory" validate:"oneof=memory redis"`
	Workers    int           `yaml:"workers" default:"2" validate:"min=1"`
	QueueSize  int           `yaml:"queue_size" default:"256" validate:"min=1"`
	RetryLimit int           `yaml:"retry_limit" default:"3" validate:"min=0"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
}

type AuditConfig struct {
	Sink    string        `yaml:"sink" default:"log" validate:"oneof=clickhouse kafka log"`
	// Consume runs the Kafka consumer that persists audit messages into ClickHouse.
	Consume bool          `yaml:"consume" default:"false"`
	Timeout time.Duration `yaml:"timeout" default:"2s"`
}

type EventsConfig struct {
	Enabled bool `yaml:"enabled" default:"false"`
}

type KafkaConfig struct {
	Brokers     []string       `yaml:"brokers"`
	ClientID    string         `yaml:"client_id" default:"edupulse"`
	AuditTopic  string         `yaml:"audit_topic" default:"edupulse.audit"`
	EventsTopic string         `yaml:"events_topic" default:"edupulse.analysis.completed"`
	Compression string         `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Producer    ProducerConfig `yaml:"producer"`
	Consumer    ConsumerConfig `yaml:"consumer"`
}

type ProducerConfig struct {
	RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3" validate:"min=1"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	Async        bool          `yaml:"async" default:"false"`
}

type ConsumerConfig struct {
	GroupID    string        `yaml:"group_id" default:"edupulse-audit"`
	Workers    int           `yaml:"workers" default:"2" validate:"min=1"`
	BufferSize int           `yaml:"buffer_size" default:"64" validate:"min=1"`
	RetryMax   int           `yaml:"retry_max" default:"3" validate:"min=0"`
	BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
	BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
	DLQTopic   string        `yaml:"dlq_topic"`
	MinBytes   int           `yaml:"min_bytes" default:"1"`
	MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"edupulse"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert" default:"true"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert" default:"false"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
	InitSchema       bool          `yaml:"init_schema" default:"true"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" default:"0"`
	PoolSize int    `yaml:"pool_size" default:"10"`
	Prefix   string `yaml:"prefix" default:"edupulse"`
}

type RateLimitConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Backend string `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
	// Algorithm applies to the memory backend; redis always counts fixed windows.
	Algorithm string        `yaml:"algorithm" default:"token_bucket" validate:"oneof=token_bucket fixed_window"`
	Limit     int           `yaml:"limit" default:"30" validate:"min=1"`
	Window    time.Duration `yaml:"window" default:"1m" validate:"min=1s"`
}

// AuthConfig maps static API keys to identities.
type AuthConfig struct {
	Enabled bool                    `yaml:"enabled" default:"true"`
	Header  string                  `yaml:"header" default:"X-API-Key"`
	APIKeys map[string]AuthIdentity `yaml:"api_keys"`
}

type AuthIdentity struct {
	UserID string `yaml:"user_id" validate:"required"`
	Email  string `yaml:"email" validate:"omitempty,email"`
}

type EmailConfig struct {
	BaseURL      string        `yaml:"base_url" validate:"omitempty,url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	From         string        `yaml:"from" default:"analytics@edupulse.local" validate:"omitempty,email"`
	Timeout      time.Duration `yaml:"timeout" default:"10s"`
}

// envOverrides points at the Config fields that may be overridden from the
// environment. Unset variables leave the target untouched.
type envOverrides struct {
	Environment *string `envconfig:"ENVIRONMENT"`

	ServerHost *string `envconfig:"SERVER_HOST"`
	ServerPort *int    `envconfig:"SERVER_PORT"`

	LogLevel  *string `envconfig:"LOG_LEVEL"`
	LogFormat *string `envconfig:"LOG_FORMAT"`

	MaxUploadBytes    *int64         `envconfig:"ANALYTICS_MAX_UPLOAD_BYTES"`
	Workers           *int           `envconfig:"ANALYTICS_WORKERS"`
	ProcessingTimeout *time.Duration `envconfig:"ANALYTICS_PROCESSING_TIMEOUT"`
	NotifyEnabled     *bool          `envconfig:"ANALYTICS_NOTIFY_ENABLED"`
	NotifyQueue       *string        `envconfig:"ANALYTICS_NOTIFY_QUEUE"`

	AuditSink     *string `envconfig:"AUDIT_SINK"`
	AuditConsume  *bool   `envconfig:"AUDIT_CONSUME"`
	EventsEnabled *bool   `envconfig:"EVENTS_ENABLED"`

	KafkaBrokers *[]string `envconfig:"KAFKA_BROKERS"`

	ClickHouseHost     *string `envconfig:"CLICKHOUSE_HOST"`
	ClickHousePort     *int    `envconfig:"CLICKHOUSE_PORT"`
	ClickHouseUser     *string `envconfig:"CLICKHOUSE_USER"`
	ClickHousePassword *string `envconfig:"CLICKHOUSE_PASSWORD"`
	ClickHouseDatabase *string `envconfig:"CLICKHOUSE_DATABASE"`

	RedisHost     *string `envconfig:"REDIS_HOST"`
	RedisPort     *int    `envconfig:"REDIS_PORT"`
	RedisPassword *string `envconfig:"REDIS_PASSWORD"`

	RateLimitBackend   *string `envconfig:"RATE_LIMIT_BACKEND"`
	RateLimitAlgorithm *string `envconfig:"RATE_LIMIT_ALGORITHM"`
	RateLimitLimit     *int    `envconfig:"RATE_LIMIT_LIMIT"`

	AuthEnabled *bool `envconfig:"AUTH_ENABLED"`

	EmailBaseURL      *string `envconfig:"EMAIL_BASE_URL"`
	EmailClientID     *string `envconfig:"EMAIL_CLIENT_ID"`
	EmailClientSecret *string `envconfig:"EMAIL_CLIENT_SECRET"`
}

func overridesFor(c *Config) *envOverrides {
	return &envOverrides{
		Environment:        &c.Environment,
		ServerHost:         &c.Server.Host,
		ServerPort:         &c.Server.Port,
		LogLevel:           &c.Log.Level,
		LogFormat:          &c.Log.Format,
		MaxUploadBytes:     &c.Analytics.MaxUploadBytes,
		Workers:            &c.Analytics.Workers,
		ProcessingTimeout:  &c.Analytics.ProcessingTimeout,
		NotifyEnabled:      &c.Analytics.Notify.Enabled,
		NotifyQueue:        &c.Analytics.Notify.Queue,
		AuditSink:          &c.Audit.Sink,
		AuditConsume:       &c.Audit.Consume,
		EventsEnabled:      &c.Events.Enabled,
		KafkaBrokers:       &c.Kafka.Brokers,
		ClickHouseHost:     &c.ClickHouse.Host,
		ClickHousePort:     &c.ClickHouse.Port,
		ClickHouseUser:     &c.ClickHouse.User,
		ClickHousePassword: &c.ClickHouse.Password,
		ClickHouseDatabase: &c.ClickHouse.Database,
		RedisHost:          &c.Redis.Host,
		RedisPort:          &c.Redis.Port,
		RedisPassword:      &c.Redis.Password,
		RateLimitBackend:   &c.RateLimit.Backend,
		RateLimitAlgorithm: &c.RateLimit.Algorithm,
		RateLimitLimit:     &c.RateLimit.Limit,
		AuthEnabled:        &c.Auth.Enabled,
		EmailBaseURL:       &c.Email.BaseURL,
		EmailClientID:      &c.Email.ClientID,
		EmailClientSecret:  &c.Email.ClientSecret,
	}
}

// Default returns a Config populated from struct defaults only.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load applies struct defaults, the YAML file at path (optional when empty),
// environment overrides and validation, in that order.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, overridesFor(c)); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

var validate = validator.New()

// Validate checks struct tags and the dependencies between sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for key, id := range c.Auth.APIKeys {
		if key == "" {
			return errors.New("auth.api_keys: empty key")
		}
		if err := validate.Struct(id); err != nil {
			return fmt.Errorf("auth.api_keys[%s]: %w", key, err)
		}
	}

	needKafka := c.Audit.Sink == "kafka" || c.Audit.Consume || c.Events.Enabled
	if needKafka && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required for the kafka audit sink, the audit consumer and events")
	}
	needClickHouse := c.Audit.Sink == "clickhouse" || c.Audit.Consume
	if needClickHouse && c.ClickHouse.Host == "" {
		return errors.New("clickhouse.host is required for the clickhouse audit sink and the audit consumer")
	}
	if c.RateLimit.Enabled && c.RateLimit.Backend == "redis" && c.Redis.Host == "" {
		return errors.New("redis.host is required for the redis rate limit backend")
	}
	if c.Analytics.Notify.Enabled {
		if c.Email.BaseURL == "" || c.Email.ClientID == "" || c.Email.ClientSecret == "" {
			return errors.New("email.base_url, email.client_id and email.client_secret are required when analytics.notify.enabled")
		}
		if c.Analytics.Notify.Queue == "redis" && c.Redis.Host == "" {
			return errors.New("redis.host is required for the redis notify queue")
		}
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return errors.New("auth.api_keys must not be empty when auth is enabled")
	}
	return nil
}
