//go:build wireinject
// +build wireinject

package di

import (
	"AlphaCrew/pkg/config"
	"AlphaCrew/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,
		ProvideCache,

		// Repositories
		ProvideAnalysisStore,
		ProvideEventPublisher,

		// External seams
		ProvideFinancials,
		ProvideLanguageModel,

		// Pipeline
		ProvideAgents,
		ProvideCollector,
		ProvideDetector,
		ProvideSynthesizer,
		ProvideAdvisor,
		ProvideOrchestrator,

		// Use cases
		ProvideTelemetryUseCase,
		ProvideValuationUseCase,
		ProvideHistoryUseCase,

		// Background and delivery
		ProvideRedisQueue,
		ProvideLimiter,
		ProvideTelemetryHub,
		ProvideTelemetryPipeline,
		ProvideHandlers,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
