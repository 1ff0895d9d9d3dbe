package ability

import (
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
)

// Execution 正在执行的技能，每个 Agent 同时至多一个
type Execution struct {
	Def     *Definition
	Phase   Phase
	Elapsed time.Duration // 当前阶段已经过的时间

	StartedAt time.Duration // 进入 Windup 的时间
	PhaseAt   time.Duration // 进入当前阶段的时间

	// Primary 阶段开始时黑板中的目标
	Primary entity.Handle
	// Direction Commit 使用的方向
	Direction geom.Vec2
	// Marker delayed 技能预告的落点
	Marker geom.Vec2
	// Exhausted Stoppage 剩余不足 25% 时置位，进入 Recovery 清除
	Exhausted bool

	hit    map[entity.Handle]struct{}
	effect Effect
}

func newExecution(def *Definition, now time.Duration) *Execution {
	return &Execution{
		Def:       def,
		Phase:     PhaseWindup,
		StartedAt: now,
		PhaseAt:   now,
		hit:       make(map[entity.Handle]struct{}),
	}
}

// Remaining 当前阶段剩余时间
func (e *Execution) Remaining() time.Duration {
	return max(e.Def.duration(e.Phase)-e.Elapsed, 0)
}

// Progress 当前阶段进度 [0,1]，时长为 0 时视为完成
func (e *Execution) Progress() float64 {
	d := e.Def.duration(e.Phase)
	if d <= 0 {
		return 1
	}
	return geom.Clamp01(float64(e.Elapsed) / float64(d))
}

// Hit 标记命中，目标本次执行中首次命中时返回 true
func (e *Execution) Hit(h entity.Handle) bool {
	if _, ok := e.hit[h]; ok {
		return false
	}
	e.hit[h] = struct{}{}
	return true
}

// HasHit 目标是否已被本次执行命中
func (e *Execution) HasHit(h entity.Handle) bool {
	_, ok := e.hit[h]
	return ok
}

// HitCount 已命中目标数
func (e *Execution) HitCount() int {
	return len(e.hit)
}
