package zone

import (
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/ability"
	"github.com/lk2023060901/xdooria-combat/pkg/arbitration"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
)

// SimConfig 模拟参数，所有 zone 共用
type SimConfig struct {
	// TickRate 每秒步进次数
	TickRate int `mapstructure:"tick_rate" json:"tick_rate" validate:"gt=0,lte=120"`
	// MaxDT 单次步进的最大时间增量，超出部分丢弃
	MaxDT time.Duration `mapstructure:"max_dt" json:"max_dt" validate:"gt=0"`
	// Lockout 特殊技能全局锁定时长
	Lockout time.Duration `mapstructure:"lockout" json:"lockout" validate:"gte=0"`
	// TickBudget 单次步进的耗时预算，0 表示一个 tick 间隔
	TickBudget time.Duration `mapstructure:"tick_budget" json:"tick_budget" validate:"gte=0"`
	// Workers 并行步进 zone 的协程数，0 表示 CPU 核数
	Workers int `mapstructure:"workers" json:"workers" validate:"gte=0"`

	Arbitration arbitration.Config `mapstructure:"arbitration" json:"arbitration"`
}

// DefaultSimConfig 默认模拟参数
func DefaultSimConfig() *SimConfig {
	return &SimConfig{
		TickRate:    20,
		MaxDT:       250 * time.Millisecond,
		Lockout:     ability.DefaultLockout,
		Arbitration: *arbitration.DefaultConfig(),
	}
}

// Interval tick 间隔
func (c *SimConfig) Interval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// Budget 步进耗时预算
func (c *SimConfig) Budget() time.Duration {
	if c.TickBudget > 0 {
		return c.TickBudget
	}
	return c.Interval()
}

// Bounds 矩形边界，零值表示不限制
type Bounds struct {
	Min geom.Vec2 `mapstructure:"min" json:"min"`
	Max geom.Vec2 `mapstructure:"max" json:"max"`
}

// IsZero 是否未设置
func (b Bounds) IsZero() bool {
	return b.Min.IsZero() && b.Max.IsZero()
}

// Clamp 把坐标限制在边界内
func (b Bounds) Clamp(p geom.Vec2) geom.Vec2 {
	if b.IsZero() {
		return p
	}
	return geom.V(
		min(max(p.X, b.Min.X), b.Max.X),
		min(max(p.Y, b.Min.Y), b.Max.Y),
	)
}

// Config 单个 zone 配置
type Config struct {
	ID       string `mapstructure:"id" json:"id" validate:"required"`
	Capacity int    `mapstructure:"capacity" json:"capacity" validate:"gt=0"`
	Bounds   Bounds `mapstructure:"bounds" json:"bounds"`
}

// DefaultConfig 默认 zone 配置
func DefaultConfig() *Config {
	return &Config{
		Capacity: 256,
	}
}
