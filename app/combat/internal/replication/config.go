package replication

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/lk2023060901/xdooria-combat/pkg/framer"
	"github.com/lk2023060901/xdooria-combat/pkg/websocket"
)

// OpSnapshot 快照帧操作码
const OpSnapshot uint32 = 1

// Config 复制服务配置
type Config struct {
	Addr string `mapstructure:"addr" json:"addr" validate:"required"`
	Path string `mapstructure:"path" json:"path" validate:"required,startswith=/"`
	// ShutdownTimeout 优雅关闭超时
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	// RateLimit 每个观察者每秒最多接收的帧数，0 表示不限制
	RateLimit float64 `mapstructure:"rate_limit" json:"rate_limit" validate:"gte=0"`
	Burst     int     `mapstructure:"burst" json:"burst" validate:"gte=0"`

	WebSocket websocket.ServerConfig `mapstructure:"websocket" json:"websocket"`
	Frame     framer.Config          `mapstructure:"frame" json:"frame"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":9100",
		Path:            "/observe",
		ShutdownTimeout: 5 * time.Second,
		RateLimit:       30,
		Burst:           5,
		WebSocket:       *websocket.DefaultServerConfig(),
		Frame:           *framer.DefaultConfig(),
	}
}

func (c *Config) limit() rate.Limit {
	if c.RateLimit <= 0 {
		return rate.Inf
	}
	return rate.Limit(c.RateLimit)
}

// MirrorConfig 非权威节点订阅配置
type MirrorConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// URL 权威节点的观察地址，例如 ws://10.0.0.2:9100/observe
	URL   string `mapstructure:"url" json:"url" validate:"required_if=Enabled true"`
	Zone  string `mapstructure:"zone" json:"zone" validate:"required_if=Enabled true"`
	Token string `mapstructure:"token" json:"-"`

	Client websocket.ClientConfig `mapstructure:"client" json:"client"`
	Frame  framer.Config          `mapstructure:"frame" json:"frame"`
}
