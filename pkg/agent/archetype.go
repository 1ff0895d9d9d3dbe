package agent

import (
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/ability"
	"github.com/lk2023060901/xdooria-combat/pkg/arbitration"
)

// Archetype 敌人类型配置，一个 Agent 由 Archetype 加上技能列表参数化
type Archetype struct {
	ID      string `mapstructure:"id" json:"id" validate:"required"`
	Name    string `mapstructure:"name" json:"name"`
	Faction string `mapstructure:"faction" json:"faction" validate:"required"`

	MaxHP  int32   `mapstructure:"max_hp" json:"max_hp" validate:"gt=0"`
	Radius float64 `mapstructure:"radius" json:"radius" validate:"gte=0"`
	// Speed 基础移动速度（单位/秒）
	Speed float64 `mapstructure:"speed" json:"speed" validate:"gt=0"`
	// TurnRate 转向速度（度/秒），0 表示瞬间转向
	TurnRate float64 `mapstructure:"turn_rate" json:"turn_rate" validate:"gte=0"`

	PerceptionRadius float64 `mapstructure:"perception_radius" json:"perception_radius" validate:"gt=0"`
	// LoseRadius 目标超出该距离后丢失，0 表示与 PerceptionRadius 相同
	LoseRadius   float64       `mapstructure:"lose_radius" json:"lose_radius" validate:"gte=0"`
	ScanInterval time.Duration `mapstructure:"scan_interval" json:"scan_interval" validate:"gte=0"`
	PatrolRadius float64       `mapstructure:"patrol_radius" json:"patrol_radius" validate:"gte=0"`
	// SpawnDelay 出生后保持静止的时长
	SpawnDelay time.Duration `mapstructure:"spawn_delay" json:"spawn_delay" validate:"gte=0"`
	// Lockout 覆盖特殊技能全局锁定时长，0 使用默认值
	Lockout time.Duration `mapstructure:"lockout" json:"lockout" validate:"gte=0"`

	BasicID    string   `mapstructure:"basic" json:"basic" validate:"required"`
	SpecialIDs []string `mapstructure:"specials" json:"specials" validate:"dive,required"`

	// Arbitration 覆盖仲裁参数
	Arbitration *arbitration.Config `mapstructure:"arbitration" json:"arbitration,omitempty" validate:"omitempty"`

	// 由技能表解析得到
	Basic    *ability.Definition   `mapstructure:"-" json:"-" validate:"-"`
	Specials []*ability.Definition `mapstructure:"-" json:"-" validate:"-"`
}

// loseRadius 目标丢失距离
func (a *Archetype) loseRadius() float64 {
	return max(a.LoseRadius, a.PerceptionRadius)
}

// Abilities 按声明顺序返回全部技能，普通攻击在最前
func (a *Archetype) Abilities() []*ability.Definition {
	out := make([]*ability.Definition, 0, len(a.Specials)+1)
	if a.Basic != nil {
		out = append(out, a.Basic)
	}
	return append(out, a.Specials...)
}
