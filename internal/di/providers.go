package di

import (
	"context"
	"fmt"
	"time"

	"EduPulse/internal/domain/models"
	"EduPulse/internal/domain/repository"
	"EduPulse/internal/handler/api"
	mid "EduPulse/internal/middleware"
	internalrepo "EduPulse/internal/repository"
	"EduPulse/internal/service/email"
	svcmetrics "EduPulse/internal/service/metrics"
	"EduPulse/internal/service/ratelimit"
	"EduPulse/internal/services/analytics"
	"EduPulse/internal/services/visualization"
	"EduPulse/internal/usecase"
	"EduPulse/pkg/cache"
	pkgch "EduPulse/pkg/clickhouse"
	"EduPulse/pkg/config"
	xhttp "EduPulse/pkg/http"
	pkgkafka "EduPulse/pkg/kafka"
	applogger "EduPulse/pkg/logger"
	"EduPulse/pkg/metrics"
	"EduPulse/pkg/queue"
	"EduPulse/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry shared by every component.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates the analytics metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideEndpointMetrics creates the per-endpoint metrics.
func ProvideEndpointMetrics(reg *prometheus.Registry) *svcmetrics.Endpoint {
	return svcmetrics.NewEndpoint(reg)
}

// AnalyticsConfig maps configuration onto the pipeline settings.
func AnalyticsConfig(cfg *config.Config) analytics.Config {
	a := cfg.Analytics
	return analytics.Config{
		MaxUploadBytes:  a.MaxUploadBytes,
		Workers:         a.Workers,
		ExportPrecision: a.ExportPrecision,
		ChartMaxPoints:  a.ChartMaxPoints,
		Cleaner: analytics.CleanerConfig{
			MaxAbsValue:      a.Cleaner.MaxAbsValue,
			OutlierMethod:    a.Cleaner.OutlierMethod,
			OutlierThreshold: a.Cleaner.OutlierThreshold,
			OutlierAction:    a.Cleaner.OutlierAction,
			MinOutlierPoints: a.Cleaner.MinOutlierPoints,
			Imputation:       a.Cleaner.Imputation,
			Normalization:    a.Cleaner.Normalization,
			Workers:          a.Workers,
		},
		Analyzer: analytics.AnalyzerConfig{
			SignificanceThreshold: a.Analyzer.SignificanceThreshold,
			RecentWindow:          a.Analyzer.RecentWindow,
			MinTrendPoints:        a.Analyzer.MinTrendPoints,
			Confidence:            a.Analyzer.Confidence,
		},
		Forecaster: analytics.ForecasterConfig{
			MinPoints:     a.Forecast.MinPoints,
			Horizon:       a.Forecast.Horizon,
			Method:        a.Forecast.Method,
			Alpha:         a.Forecast.Alpha,
			Beta:          a.Forecast.Beta,
			IntervalWidth: a.Forecast.IntervalWidth,
		},
	}
}

// ProvidePipeline builds the analytics pipeline with charts enabled.
func ProvidePipeline(cfg *config.Config, l *applogger.Logger) *analytics.Pipeline {
	pl := l.With(applogger.String("component", "pipeline"))
	return analytics.NewPipeline(AnalyticsConfig(cfg),
		analytics.WithChartBuilder(visualization.NewBuilder(cfg.Analytics.ChartMaxPoints)),
		analytics.WithWarningHook(func(w models.Warning) {
			pl.Debug("analysis warning", applogger.String("code", w.Code), applogger.String("message", w.Message))
		}),
	)
}

func needsClickHouse(cfg *config.Config) bool {
	return cfg.Audit.Sink == "clickhouse" || cfg.Audit.Consume
}

// ProvideClickHouseClient connects to ClickHouse when the audit store needs it, else returns nil.
func ProvideClickHouseClient(ctx context.Context, cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !needsClickHouse(cfg) {
		return nil, func() {}, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(ch.MaxOpenConns, ch.MaxIdleConns),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if ch.InitSchema {
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.InitSchema(sctx, internalrepo.AuditSchema(ch.Database)); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideKafkaProducer creates a producer when audit or events go to Kafka, else returns nil.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if cfg.Audit.Sink != "kafka" && !cfg.Events.Enabled {
		return nil, func() {}, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithClientID(k.ClientID),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.Producer.RequiredAcks),
		pkgkafka.WithBatch(k.Producer.BatchSize, k.Producer.BatchBytes, k.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerMetrics(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideCache connects to Redis when the rate limiter or the notify queue
// uses it, else returns nil.
func ProvideCache(ctx context.Context, cfg *config.Config, l *applogger.Logger) (*cache.RedisCache, func(), error) {
	forLimiter := cfg.RateLimit.Enabled && cfg.RateLimit.Backend == "redis"
	forQueue := cfg.Analytics.Notify.Enabled && cfg.Analytics.Notify.Queue == "redis"
	if !forLimiter && !forQueue {
		return nil, func() {}, nil
	}
	r := cfg.Redis
	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(r.Host, r.Port),
		cache.WithRedisPassword(r.Password),
		cache.WithRedisDB(r.DB),
		cache.WithRedisPool(r.PoolSize, 0, 0),
		cache.WithRedisPrefix(r.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	return rc, cleanup, nil
}

// ProvideAuditStore exposes the ClickHouse audit table, or nil without ClickHouse.
func ProvideAuditStore(ch *pkgch.Client, l *applogger.Logger) repository.AuditStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseAuditStore(ch, l)
}

// ProvideAuditSink selects where request audit entries go.
func ProvideAuditSink(cfg *config.Config, store repository.AuditStore, producer *pkgkafka.Producer, l *applogger.Logger) (repository.AuditSink, error) {
	switch cfg.Audit.Sink {
	case "clickhouse":
		if store == nil {
			return nil, fmt.Errorf("audit sink clickhouse: no clickhouse client")
		}
		return store, nil
	case "kafka":
		if producer == nil {
			return nil, fmt.Errorf("audit sink kafka: no producer")
		}
		return internalrepo.NewKafkaAuditSink(producer, cfg.Kafka.AuditTopic), nil
	default:
		return internalrepo.NewLogAuditSink(l), nil
	}
}

// ProvideEventPublisher publishes completion events when enabled.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if !cfg.Events.Enabled || producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideNotifyQueue creates the queue that delivers notification email, else returns nil.
func ProvideNotifyQueue(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) (queue.Queue, error) {
	n := cfg.Analytics.Notify
	if !n.Enabled {
		return nil, nil
	}
	qc := &queue.QueueConfig{
		Workers:    n.Workers,
		QueueSize:  n.QueueSize,
		RetryLimit: n.RetryLimit,
		RetryDelay: n.RetryDelay,
	}
	ql := l.With(applogger.String("component", "notify_queue"))
	if n.Queue == "redis" {
		if rc == nil {
			return nil, fmt.Errorf("notify queue redis: no redis client")
		}
		return queue.NewRedisQueue(ql, qc, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue:notify")), nil
	}
	return queue.NewMemoryQueue(ql, qc), nil
}

// ProvideNotifier builds the queued email notifier when enabled, else returns nil.
func ProvideNotifier(cfg *config.Config, q queue.Queue) (repository.Notifier, error) {
	if !cfg.Analytics.Notify.Enabled || q == nil {
		return nil, nil
	}
	client, err := email.NewClient(email.Config{
		BaseURL:      cfg.Email.BaseURL,
		ClientID:     cfg.Email.ClientID,
		ClientSecret: cfg.Email.ClientSecret,
		From:         cfg.Email.From,
		Timeout:      cfg.Email.Timeout,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("email client: %w", err)
	}
	q.RegisterJob(email.NewSendJob(client))
	return email.NewNotifier(email.NewQueuedSender(q)), nil
}

// ProvideAnalyzeService wires the analytics use case.
func ProvideAnalyzeService(
	cfg *config.Config,
	pipeline *analytics.Pipeline,
	m repository.Metrics,
	audit repository.AuditSink,
	events repository.EventPublisher,
	notifier repository.Notifier,
	l *applogger.Logger,
) *usecase.AnalyzeService {
	opts := []usecase.AnalyzeOption{
		usecase.WithProcessingTimeout(cfg.Analytics.ProcessingTimeout),
		usecase.WithAuditTimeout(cfg.Audit.Timeout),
		usecase.WithEventPublisher(events),
	}
	if notifier != nil {
		opts = append(opts, usecase.WithNotifier(notifier, cfg.Analytics.Notify.Timeout))
	}
	return usecase.NewAnalyzeService(pipeline, m, audit, l, opts...)
}

// ProvideAuditConsumer creates the Kafka consumer that persists audit messages, else returns nil.
func ProvideAuditConsumer(
	cfg *config.Config,
	store repository.AuditStore,
	m repository.Metrics,
	reg *prometheus.Registry,
	l *applogger.Logger,
) (*pkgkafka.Consumer, error) {
	if !cfg.Audit.Consume {
		return nil, nil
	}
	if store == nil {
		return nil, fmt.Errorf("audit consumer: no clickhouse client")
	}
	k := cfg.Kafka
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(k.Brokers),
		pkgkafka.WithConsumerGroupID(k.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(k.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(k.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(k.Consumer.RetryMax, k.Consumer.BackoffMin, k.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(k.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(k.Consumer.MinBytes, k.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerMetrics(reg),
		pkgkafka.WithConsumerHook(pkgkafka.NewHookChain(
			pkgkafka.MetadataHook(),
			pkgkafka.LoggingHook(l, time.Second),
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewAuditHandler(k.AuditTopic, store, m))
	return consumer, nil
}

// ProvideRateLimiter returns the configured limiter, or nil when rate limiting is off.
// The memory fixed window keeps its counters in a local cache closed by the cleanup.
func ProvideRateLimiter(cfg *config.Config, c *cache.RedisCache) (ratelimit.Limiter, func()) {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return nil, func() {}
	}
	if rl.Backend == "redis" && c != nil {
		return ratelimit.NewFixedWindow(c, rl.Limit, rl.Window), func() {}
	}
	if rl.Algorithm == "fixed_window" {
		mc := cache.NewMemoryCache(cache.WithMemoryCleanup(rl.Window))
		return ratelimit.NewFixedWindow(mc, rl.Limit, rl.Window), func() { _ = mc.Close() }
	}
	return ratelimit.NewTokenBucket(rl.Limit, rl.Window), func() {}
}

// ProvideAuthenticator maps configured API keys to identities.
func ProvideAuthenticator(cfg *config.Config) mid.Authenticator {
	if !cfg.Auth.Enabled {
		return mid.AnonymousAuthenticator{}
	}
	keys := make(map[string]models.Identity, len(cfg.Auth.APIKeys))
	for key, who := range cfg.Auth.APIKeys {
		keys[key] = models.Identity{UserID: who.UserID, Email: who.Email}
	}
	return mid.NewAPIKeyAuthenticator(cfg.Auth.Header, keys)
}

// ProvideAnalyticsHandler creates the analytics HTTP handler.
func ProvideAnalyticsHandler(
	cfg *config.Config,
	svc *usecase.AnalyzeService,
	auth mid.Authenticator,
	limiter ratelimit.Limiter,
	endpoint *svcmetrics.Endpoint,
	l *applogger.Logger,
) *api.AnalyticsEchoHandler {
	opts := []api.AnalyticsHandlerOption{
		api.WithAuth(mid.Auth(auth, l)),
		api.WithEndpointMetrics(endpoint),
		api.WithLimits(cfg.Analytics.MaxUploadBytes, cfg.Analytics.Cleaner.MaxAbsValue),
	}
	if limiter != nil {
		opts = append(opts, api.WithRateLimit(mid.RateLimit(limiter, l)))
	}
	return api.NewAnalyticsEchoHandler(l, svc, opts...)
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, h *api.AnalyticsEchoHandler, reg *prometheus.Registry, l *applogger.Logger) *xhttp.Server {
	s := cfg.Server
	opts := []xhttp.ServerOption{
		xhttp.WithHost(s.Host),
		xhttp.WithPort(s.Port),
		xhttp.WithTimeouts(s.ReadTimeout, s.WriteTimeout, s.ShutdownTimeout),
		xhttp.WithCORS(s.CORS),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, s.SlowThreshold))
	}
	return xhttp.NewServer(l, h, opts...)
}

// ProvideApp creates the application.
func ProvideApp(
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	notifyQueue queue.Queue,
	svc *usecase.AnalyzeService,
	cfg *config.Config,
	l *applogger.Logger,
) *server.App {
	opts := []server.Option{
		server.WithBackground(svc),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}
	if consumer != nil {
		opts = append(opts, server.WithWorker("audit_consumer", consumer))
	}
	if notifyQueue != nil {
		opts = append(opts, server.WithWorker("notify_queue", notifyQueue))
	}
	return server.New(l, srv, opts...)
}
