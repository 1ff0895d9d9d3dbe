package ability

import (
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/geom"
)

// Kind 技能类别
type Kind string

const (
	KindBasic   Kind = "basic"   // 普通攻击，不受全局锁定影响
	KindSpecial Kind = "special" // 特殊技能，共享全局锁定
)

// EffectKind 生效方式
type EffectKind string

const (
	EffectStrike    EffectKind = "strike"    // Commit 开始时对区域造成伤害
	EffectTraversal EffectKind = "traversal" // Commit 期间位移，命中体积内的目标各结算一次
	EffectDelayed   EffectKind = "delayed"   // Commit 预告，Impact 时结算
)

// EffectSpec 生效参数
type EffectSpec struct {
	Kind   EffectKind     `mapstructure:"kind" json:"kind" validate:"required,oneof=strike traversal delayed"`
	Shape  geom.ShapeKind `mapstructure:"shape" json:"shape" validate:"omitempty,oneof=sphere cone line"`
	Damage int32          `mapstructure:"damage" json:"damage" validate:"gte=0"`

	// Radius 圆/扇形半径，直线为长度
	Radius float64 `mapstructure:"radius" json:"radius" validate:"gte=0"`
	// Angle 扇形半角（度）
	Angle float64 `mapstructure:"angle" json:"angle" validate:"gte=0,lte=180"`
	// Width 直线宽度
	Width float64 `mapstructure:"width" json:"width" validate:"gte=0"`
	// Offset 判定区域沿朝向的偏移
	Offset float64 `mapstructure:"offset" json:"offset"`

	// Speed 位移速度（单位/秒），仅 traversal
	Speed float64 `mapstructure:"speed" json:"speed" validate:"gte=0"`
	// HitRadius 位移期间的命中体积半径，仅 traversal
	HitRadius float64 `mapstructure:"hit_radius" json:"hit_radius" validate:"gte=0"`
}

// Definition 技能静态配置，加载后不可修改
type Definition struct {
	ID   string `mapstructure:"id" json:"id" validate:"required"`
	Name string `mapstructure:"name" json:"name"`
	Kind Kind   `mapstructure:"kind" json:"kind" validate:"required,oneof=basic special"`

	Cooldown time.Duration `mapstructure:"cooldown" json:"cooldown" validate:"gte=0"`
	Windup   time.Duration `mapstructure:"windup" json:"windup" validate:"gte=0"`
	Commit   time.Duration `mapstructure:"commit" json:"commit" validate:"gte=0"`
	Stoppage time.Duration `mapstructure:"stoppage" json:"stoppage" validate:"gte=0"`
	Recovery time.Duration `mapstructure:"recovery" json:"recovery" validate:"gte=0"`

	MinRange float64 `mapstructure:"min_range" json:"min_range" validate:"gte=0"`
	MaxRange float64 `mapstructure:"max_range" json:"max_range" validate:"gtefield=MinRange"`

	// Weight 评分权重 [0,1]
	Weight float64 `mapstructure:"weight" json:"weight" validate:"gte=0,lte=1"`
	// FacingTolerance 允许的朝向误差（度）
	FacingTolerance float64 `mapstructure:"facing_tolerance" json:"facing_tolerance" validate:"gte=0,lte=180"`
	// LockFacing 前摇开始时锁定方向，之后不再跟随目标
	LockFacing bool `mapstructure:"lock_facing" json:"lock_facing"`

	Effect EffectSpec `mapstructure:"effect" json:"effect"`
}

// Special 是否为特殊技能
func (d *Definition) Special() bool {
	return d.Kind == KindSpecial
}

// Midpoint 偏好距离中点
func (d *Definition) Midpoint() float64 {
	return (d.MinRange + d.MaxRange) / 2
}

// InRange 距离是否处于偏好区间
func (d *Definition) InRange(dist float64) bool {
	return dist >= d.MinRange && dist <= d.MaxRange
}

// duration 阶段时长，负值按 0 处理，Impact 恒为瞬时
func (d *Definition) duration(p Phase) time.Duration {
	var v time.Duration
	switch p {
	case PhaseWindup:
		v = d.Windup
	case PhaseCommit:
		v = d.Commit
	case PhaseStoppage:
		v = d.Stoppage
	case PhaseRecovery:
		v = d.Recovery
	}
	return max(v, 0)
}
