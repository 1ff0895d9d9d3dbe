package arbitration

import (
	"math"
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/ability"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
)

// DefaultThreshold 默认激活阈值
const DefaultThreshold = 0.15

// Config 仲裁参数
type Config struct {
	// Threshold 最高分必须严格大于该值才会被选中
	Threshold float64 `mapstructure:"threshold" json:"threshold" validate:"gte=0,lte=1"`
	// RangeNormalizer 距离归一化系数，0 表示按各技能区间半宽计算
	RangeNormalizer float64 `mapstructure:"range_normalizer" json:"range_normalizer" validate:"gte=0"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Threshold: DefaultThreshold,
	}
}

// Gate 评分结果
type Gate uint8

const (
	GateOK        Gate = iota
	GateActive         // 已有技能在执行
	GateCooldown       // 冷却中
	GateLockout        // 全局锁定中
	GateNoTarget       // 没有目标
	GateRange          // 距离不在偏好区间
	GateFacing         // 朝向误差超出容忍
	GateThreshold      // 分数未超过阈值
)

func (g Gate) String() string {
	switch g {
	case GateOK:
		return "ok"
	case GateActive:
		return "active"
	case GateCooldown:
		return "cooldown"
	case GateLockout:
		return "lockout"
	case GateNoTarget:
		return "no_target"
	case GateRange:
		return "range"
	case GateFacing:
		return "facing"
	case GateThreshold:
		return "threshold"
	default:
		return "unknown"
	}
}

func gateOf(r ability.Reason) Gate {
	switch r {
	case ability.ReasonActive:
		return GateActive
	case ability.ReasonCooldown:
		return GateCooldown
	case ability.ReasonLockout:
		return GateLockout
	default:
		return GateOK
	}
}

// Situation 当前帧的目标态势
type Situation struct {
	Now       time.Duration
	HasTarget bool
	Distance  float64
	// FacingError 当前朝向与目标方向的夹角（度）
	FacingError float64
}

// Eligibility 技能冷却/锁定判定，由 ability.Machine 实现
type Eligibility interface {
	Eligibility(def *ability.Definition, now time.Duration) ability.Reason
}

// Score 单个技能的评分
type Score struct {
	Ability *ability.Definition `json:"-"`
	ID      string              `json:"id"`
	Index   int                 `json:"index"`
	Value   float64             `json:"value"`
	Gate    Gate                `json:"-"`
	Reason  string              `json:"gate"`
}

// Arbiter 技能仲裁器，无状态，可在多个 Agent 间共享
type Arbiter struct {
	threshold  float64
	normalizer float64
}

// New 创建仲裁器，cfg 为空时使用默认配置
func New(cfg *Config) *Arbiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Arbiter{
		threshold:  cfg.Threshold,
		normalizer: cfg.RangeNormalizer,
	}
}

// Threshold 激活阈值
func (a *Arbiter) Threshold() float64 {
	return a.threshold
}

// normalizerFor 距离归一化系数
func (a *Arbiter) normalizerFor(def *ability.Definition) float64 {
	if a.normalizer > 0 {
		return a.normalizer
	}
	if half := (def.MaxRange - def.MinRange) / 2; half > 0 {
		return half
	}
	return 1
}

// Rate 距离与朝向门槛通过后的分数
// score = (1 − clamp01(|midpoint − distance| / normalizer)) × weight
func (a *Arbiter) Rate(def *ability.Definition, s Situation) (float64, Gate) {
	if !s.HasTarget {
		return 0, GateNoTarget
	}
	if !def.InRange(s.Distance) {
		return 0, GateRange
	}
	if s.FacingError > def.FacingTolerance {
		return 0, GateFacing
	}
	closeness := 1 - geom.Clamp01(math.Abs(def.Midpoint()-s.Distance)/a.normalizerFor(def))
	return closeness * def.Weight, GateOK
}

// Evaluate 按声明顺序对全部技能评分
func (a *Arbiter) Evaluate(defs []*ability.Definition, s Situation, elig Eligibility) []Score {
	scores := make([]Score, 0, len(defs))
	for i, def := range defs {
		sc := Score{Ability: def, ID: def.ID, Index: i}
		if elig != nil {
			sc.Gate = gateOf(elig.Eligibility(def, s.Now))
		}
		if sc.Gate == GateOK {
			sc.Value, sc.Gate = a.Rate(def, s)
		}
		if sc.Gate == GateOK && sc.Value <= a.threshold {
			sc.Gate = GateThreshold
		}
		sc.Reason = sc.Gate.String()
		scores = append(scores, sc)
	}
	return scores
}

// Pick 选出分数严格最高且通过门槛的技能，同分时先声明者胜出
func Pick(scores []Score) (Score, bool) {
	best := -1
	for i := range scores {
		if scores[i].Gate != GateOK {
			continue
		}
		if best < 0 || scores[i].Value > scores[best].Value {
			best = i
		}
	}
	if best < 0 {
		return Score{}, false
	}
	return scores[best], true
}
