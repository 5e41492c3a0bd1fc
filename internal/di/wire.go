//go:build wireinject
// +build wireinject

package di

import (
	"FinSignal/pkg/config"
	"FinSignal/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvidePrometheusRegistry,
		ProvideMetrics,
		ProvideAPIMetrics,

		// Infrastructure clients
		ProvideFeatureStore,
		ProvideRedisClient,
		ProvideSignalCache,
		ProvideSignalPublisher,
		ProvideModelRegistry,

		// Model lifecycle
		ProvideFeatureBuilder,
		ProvideModelManager,

		// Use cases
		ProvideSignalUseCase,
		ProvideCandlesUseCase,
		ProvideTrainQueue,

		// Transport
		ProvideModelHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
