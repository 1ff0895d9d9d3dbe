package main

import (
	"fmt"

	"github.com/lk2023060901/xdooria-combat/app/combat/internal/admin"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/catalog"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/metrics"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/ownership"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/replication"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/signal"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/spawner"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/zone"
	"github.com/lk2023060901/xdooria-combat/pkg/app"
	"github.com/lk2023060901/xdooria-combat/pkg/database/redis"
	"github.com/lk2023060901/xdooria-combat/pkg/idgen"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/mq/kafka"
	"github.com/lk2023060901/xdooria-combat/pkg/prometheus"
	"github.com/lk2023060901/xdooria-combat/pkg/security"
	"github.com/lk2023060901/xdooria-combat/pkg/sentry"
	"github.com/lk2023060901/xdooria-combat/pkg/web"
)

// Zones 已创建并登记到管理器的 zone
type Zones []*zone.Zone

// provideAppOptions 提供应用选项
func provideAppOptions(cfg *Config, l logger.Logger) []app.Option {
	return []app.Option{
		app.WithName(app.AppName),
		app.WithLogger(l),
		app.WithNamedLoggers(cfg.Loggers),
	}
}

// providePrometheusConfig 提供 Prometheus 配置
func providePrometheusConfig(cfg *Config) *prometheus.Config {
	return &cfg.Prometheus
}

// provideMetricsConfig 提供指标配置
func provideMetricsConfig(cfg *Config) *metrics.Config {
	return &cfg.Metrics
}

// provideJWTConfig 提供令牌配置
func provideJWTConfig(cfg *Config) *security.JWTConfig {
	return &cfg.JWT
}

// provideCatalogConfig 提供配置表配置
func provideCatalogConfig(cfg *Config) *catalog.Config {
	return &cfg.Catalog
}

// provideSimConfig 提供模拟参数
func provideSimConfig(cfg *Config) *zone.SimConfig {
	return &cfg.Sim
}

// provideSentry 提供 panic 上报客户端
func provideSentry(cfg *Config) (*sentry.Client, func(), error) {
	c, err := sentry.New(&cfg.Sentry)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}

// provideIDGenerator 提供网络 ID 生成器
func provideIDGenerator(cfg *Config) (idgen.Generator, error) {
	return idgen.NewSonyflake(cfg.IDGen)
}

// provideExporter Kafka 信号导出，未启用时返回 nil
func provideExporter(cfg *Config, l logger.Logger) (*signal.Exporter, func(), error) {
	if !cfg.Signals.Kafka {
		return nil, func() {}, nil
	}
	producer, err := kafka.NewProducer(&cfg.Signals.Producer, kafka.WithLogger(l.Named("kafka")))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	exporter, err := signal.NewExporter(&cfg.Signals.Exporter, producer, l)
	if err != nil {
		_ = producer.Close()
		return nil, nil, err
	}
	return exporter, func() { _ = producer.Close() }, nil
}

// provideSignalSink 按配置组合信号去向
func provideSignalSink(cfg *Config, l logger.Logger, m *metrics.CombatMetrics, exporter *signal.Exporter) signal.Sink {
	var sinks signal.Fanout
	if cfg.Signals.Log {
		sinks = append(sinks, signal.NewLogSink(l))
	}
	if cfg.Signals.Metrics {
		sinks = append(sinks, signal.NewMetricsSink(m))
	}
	if exporter != nil {
		sinks = append(sinks, exporter)
	}
	return sinks
}

// provideLeaser 提供 zone 租约，启用时连接 redis
func provideLeaser(cfg *Config, base *app.BaseApp, l logger.Logger) (*ownership.Leaser, func(), error) {
	if !cfg.Ownership.Enabled {
		leaser, err := ownership.New(&cfg.Ownership, nil, l)
		return leaser, func() {}, err
	}

	client, err := redis.NewClient(&cfg.Ownership.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	lockers := ownership.RedisLockers(client, base.ID(), cfg.Ownership.TTL)
	leaser, err := ownership.New(&cfg.Ownership, lockers, l)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return leaser, func() { _ = client.Close() }, nil
}

// provideSpawner 提供出生调度器，Archetype 取自当前配置表
func provideSpawner(store *catalog.Store, l logger.Logger) *spawner.Spawner {
	return spawner.New(store, l)
}

// provideHub 提供快照广播服务
func provideHub(cfg *Config, jwt *security.JWTManager, mgr *zone.Manager, m *metrics.CombatMetrics, l logger.Logger) (*replication.Hub, error) {
	return replication.NewHub(&cfg.Replication, jwt, l,
		replication.WithObserver(m),
		replication.WithZoneLookup(func(id string) bool {
			_, err := mgr.Zone(id)
			return err == nil
		}),
	)
}

// provideMirror 提供快照订阅，未启用时返回 nil
func provideMirror(cfg *Config, l logger.Logger) (*replication.Mirror, error) {
	if !cfg.Mirror.Enabled {
		return nil, nil
	}
	return replication.NewMirror(&cfg.Mirror, l)
}

// provideZones 创建 zone，登记到管理器、租约与出生调度
func provideZones(
	cfg *Config,
	l logger.Logger,
	mgr *zone.Manager,
	m *metrics.CombatMetrics,
	reporter *sentry.Client,
	ids idgen.Generator,
	sink signal.Sink,
	hub *replication.Hub,
	leaser *ownership.Leaser,
	sp *spawner.Spawner,
) (Zones, error) {
	out := make(Zones, 0, len(cfg.Zones))
	for i := range cfg.Zones {
		zc := &cfg.Zones[i]
		z, err := zone.New(&zc.Config, mgr.Sim(),
			zone.WithLogger(l),
			zone.WithSink(sink),
			zone.WithObserver(m),
			zone.WithReporter(reporter),
			zone.WithIDGenerator(ids),
			zone.WithPublisher(hub),
		)
		if err != nil {
			return nil, fmt.Errorf("zone %q: %w", zc.ID, err)
		}
		if err := mgr.Add(z); err != nil {
			return nil, err
		}
		leaser.Add(z.ID(), z.Owners())
		if err := sp.Add(z, zc.Spawners); err != nil {
			return nil, fmt.Errorf("zone %q spawners: %w", zc.ID, err)
		}
		out = append(out, z)
	}
	return out, nil
}

// provideAdminServer 提供运维 HTTP 服务
func provideAdminServer(cfg *Config, l logger.Logger, prom *prometheus.Client) (*web.Server, error) {
	return web.NewServer(&cfg.Admin, l, web.WithRegisterer(prom.Registry()))
}

// provideAdminHandler 提供运维接口并注册路由
func provideAdminHandler(
	srv *web.Server,
	mgr *zone.Manager,
	store *catalog.Store,
	m *metrics.CombatMetrics,
	jwt *security.JWTManager,
	prom *prometheus.Client,
	mirror *replication.Mirror,
	l logger.Logger,
) *admin.Handler {
	opts := []admin.Option{admin.WithMetricsHandler(prom.Handler())}
	if mirror != nil {
		opts = append(opts, admin.WithReplicas(mirror))
	}
	h := admin.NewHandler(mgr, store, m, jwt, l, opts...)
	h.Register(srv.Router())
	return h
}

// provideAppComponents 按启动顺序组装服务
// 租约先于出生调度启动，保证首次补满只作用于本节点拥有的 zone
func provideAppComponents(
	store *catalog.Store,
	m *metrics.CombatMetrics,
	leaser *ownership.Leaser,
	sp *spawner.Spawner,
	mgr *zone.Manager,
	exporter *signal.Exporter,
	hub *replication.Hub,
	mirror *replication.Mirror,
	srv *web.Server,
	_ *admin.Handler,
	_ Zones,
) app.Components {
	servers := []app.Server{store, m, leaser, sp, mgr}
	if exporter != nil {
		servers = append(servers, exporter)
	}
	servers = append(servers, hub)
	if mirror != nil {
		servers = append(servers, mirror)
	}
	servers = append(servers, srv)
	return app.Components{Servers: servers}
}
