//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"Pace/internal/usecase"
	"Pace/pkg/config"
	"Pace/pkg/server"
)

var dashboardSet = wire.NewSet(
	ProvideLogger,
	ProvideClock,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideCache,
	ProvideHealthProvider,
	ProvideMetricAggregator,
	ProvideRefreshCoordinator,
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		dashboardSet,

		// Kafka
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideSampleIngestHandler,
		ProvideSnapshotPipeline,

		// HTTP
		ProvideDashboardHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeDashboard wires only what a one-shot dashboard read needs.
func InitializeDashboard(cfg *config.Config) (*usecase.RefreshCoordinator, func(), error) {
	wire.Build(dashboardSet)
	return nil, nil, nil
}
