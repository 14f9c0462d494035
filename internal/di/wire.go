//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"EduPulse/pkg/config"
	"EduPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// The cleanup closes infrastructure clients and must run after App.Run returns.
func InitializeApp(ctx context.Context, cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		ProvideEndpointMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCache,
		ProvideNotifyQueue,

		// Repositories
		ProvideAuditStore,
		ProvideAuditSink,
		ProvideEventPublisher,
		ProvideNotifier,

		// Use cases
		ProvidePipeline,
		ProvideAnalyzeService,
		ProvideAuditConsumer,

		// HTTP
		ProvideRateLimiter,
		ProvideAuthenticator,
		ProvideAnalyticsHandler,
		ProvideHTTPServer,

		// Application
		ProvideApp,
	)
	return nil, nil, nil
}
