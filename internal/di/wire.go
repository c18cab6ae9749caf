//go:build wireinject
// +build wireinject

package di

import (
	"FxPulse/pkg/config"
	"FxPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideQueue,

		// Repositories
		ProvideJournal,
		ProvideRiskStore,
		ProvideContextStore,
		ProvideAdvisoryPublisher,

		// Market data
		ProvideSessionClock,
		ProvideSampleProvider,
		ProvideHistoryProvider,
		ProvideFeedSet,

		// Evaluation pipeline
		ProvideIndicatorEngine,
		ProvideScoreEngine,
		ProvideSignalGate,
		ProvideErrorMemory,
		ProvideRiskGate,
		ProvideDecisionService,
		ProvideEvaluator,

		// Dispatch and outcomes
		ProvidePipeline,
		ProvideOutcomeWatcher,
		ProvideKafkaOutcomesHandler,
		ProvideAdvisor,

		// HTTP
		ProvideStatusHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
