//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/lk2023060901/xdooria-combat/app/combat/internal/catalog"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/metrics"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/zone"
	"github.com/lk2023060901/xdooria-combat/pkg/app"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/prometheus"
	"github.com/lk2023060901/xdooria-combat/pkg/security"
)

func InitApp(cfg *Config, l logger.Logger) (*app.BaseApp, func(), error) {
	panic(wire.Build(
		// 1. 基础框架 (BaseApp)
		provideAppOptions,
		app.ProviderSet,

		// 2. 可观测性
		providePrometheusConfig,
		prometheus.New,
		provideMetricsConfig,
		metrics.New,
		provideSentry,

		// 3. 配置表与令牌
		provideCatalogConfig,
		catalog.NewStore,
		provideJWTConfig,
		security.NewJWTManager,

		// 4. 信号去向
		provideExporter,
		provideSignalSink,

		// 5. 模拟
		provideSimConfig,
		zone.NewManager,
		provideIDGenerator,
		provideLeaser,
		provideSpawner,
		provideZones,

		// 6. 复制
		provideHub,
		provideMirror,

		// 7. 运维接口
		provideAdminServer,
		provideAdminHandler,

		// 8. 组装
		provideAppComponents,
		app.Assemble,
	))
}
