package main

import (
	"errors"
	"fmt"

	"github.com/lk2023060901/xdooria-combat/app/combat/internal/catalog"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/metrics"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/ownership"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/replication"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/signal"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/spawner"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/zone"
	"github.com/lk2023060901/xdooria-combat/pkg/app"
	"github.com/lk2023060901/xdooria-combat/pkg/idgen"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/mq/kafka"
	"github.com/lk2023060901/xdooria-combat/pkg/prometheus"
	"github.com/lk2023060901/xdooria-combat/pkg/security"
	"github.com/lk2023060901/xdooria-combat/pkg/sentry"
	"github.com/lk2023060901/xdooria-combat/pkg/web"
)

// ZoneConfig zone 及其出生规则
type ZoneConfig struct {
	zone.Config `mapstructure:",squash"`

	Spawners []spawner.Entry `mapstructure:"spawners"`
}

// SignalsConfig 表现层信号的去向
type SignalsConfig struct {
	// Log 以 debug 级别记录每条信号
	Log bool `mapstructure:"log"`
	// Metrics 计入技能与阶段计数器
	Metrics bool `mapstructure:"metrics"`
	// Kafka 以 JSON 导出到 Kafka
	Kafka bool `mapstructure:"kafka"`

	Exporter signal.ExporterConfig `mapstructure:"exporter"`
	Producer kafka.Config          `mapstructure:"producer"`
}

// Config 定义 Combat 服务的完整配置结构
type Config struct {
	Log     logger.Config             `mapstructure:"log"`
	Loggers map[string]*logger.Config `mapstructure:"loggers"`

	// 模拟参数
	Sim zone.SimConfig `mapstructure:"sim"`

	// 技能与 Archetype 表
	Catalog catalog.Config `mapstructure:"catalog"`

	// 本节点负责的 zone
	Zones []ZoneConfig `mapstructure:"zones"`

	// 快照广播与订阅
	Replication replication.Config       `mapstructure:"replication"`
	Mirror      replication.MirrorConfig `mapstructure:"mirror"`

	// 信号去向
	Signals SignalsConfig `mapstructure:"signals"`

	// Prometheus 配置
	Prometheus prometheus.Config `mapstructure:"prometheus"`

	// 指标配置
	Metrics metrics.Config `mapstructure:"metrics"`

	// 运维接口
	Admin web.Config `mapstructure:"admin"`

	// 观察者与运维令牌
	JWT security.JWTConfig `mapstructure:"jwt"`

	// panic 上报
	Sentry sentry.Config `mapstructure:"sentry"`

	// zone 权威租约
	Ownership ownership.Config `mapstructure:"ownership"`

	// 网络 ID
	IDGen idgen.Config `mapstructure:"idgen"`
}

// flags 常用的部署覆盖项
var flags = []app.Flag{
	{Name: "data-dir", Key: "catalog.data_dir", Usage: "directory with abilities.json and archetypes.json"},
	{Name: "admin-addr", Key: "admin.addr", Usage: "admin http listen address"},
	{Name: "replication-addr", Key: "replication.addr", Usage: "snapshot websocket listen address"},
	{Name: "machine-id", Key: "idgen.machine_id", Usage: "sonyflake machine id"},
}

func main() {
	var cfg Config

	// 1. 加载配置
	if err := app.LoadConfig(&cfg, flags...); err != nil {
		if errors.Is(err, app.ErrVersionRequested) {
			fmt.Println(app.GetInfo())
			return
		}
		panic(err)
	}

	// 2. 初始化主日志，warn 以上计入指标
	l, err := logger.New(&cfg.Log, logger.WithHooks(metrics.LogHook()))
	if err != nil {
		panic(err)
	}

	// 3. 通过 Wire 初始化应用
	application, cleanup, err := InitApp(&cfg, l)
	if err != nil {
		l.Error("failed to initialize application", "error", err)
		return
	}
	defer cleanup()

	// 4. 运行服务
	if err := application.Run(); err != nil {
		l.Error("application exited with error", "error", err)
	}
}
