package agent

import (
	"context"
	"math"

	"github.com/lk2023060901/xdooria-combat/pkg/ability"
	"github.com/lk2023060901/xdooria-combat/pkg/arbitration"
	"github.com/lk2023060901/xdooria-combat/pkg/bt"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
)

// buildTree 所有 Archetype 共用的决策树
//
//	Selector
//	├── Sequence(has_target, use_special)
//	├── Sequence(has_target, in_basic_range, basic_attack)
//	├── Sequence(has_target, chase)
//	└── patrol
func (a *Agent) buildTree() bt.Node {
	return bt.NewSelector("root",
		bt.NewSequence("special",
			bt.NewCondition("has_target", a.hasTarget),
			bt.NewAction("use_special", a.useSpecial),
		),
		bt.NewSequence("basic",
			bt.NewCondition("has_target", a.hasTarget),
			bt.NewCondition("in_basic_range", a.inBasicRange),
			bt.NewAction("basic_attack", a.basicAttack),
		),
		bt.NewSequence("chase",
			bt.NewCondition("has_target", a.hasTarget),
			bt.NewAction("chase", a.chase),
		),
		bt.NewAction("patrol", a.patrol,
			bt.WithOnStop(func(bb *bt.Blackboard, _ bt.Status) {
				bb.Delete(bt.KeyPatrolGoal)
			}),
		),
	)
}

func (a *Agent) hasTarget(bb *bt.Blackboard) bool {
	_, ok := bb.Target(a.validTarget)
	return ok
}

// situation 当前目标态势
func (a *Agent) situation() (arbitration.Situation, geom.Vec2) {
	s := arbitration.Situation{Now: a.now}
	p, ok := a.targetPose()
	if !ok {
		return s, geom.Vec2{}
	}
	s.HasTarget = true
	s.Distance = p.Pos.Dist(a.pose.Pos)
	s.FacingError = a.facingError(p.Pos)
	return s, p.Pos
}

// useSpecial 对特殊技能评分，选中后请求状态机开始
func (a *Agent) useSpecial(_ context.Context, _ *bt.Blackboard) bt.Status {
	if len(a.arch.Specials) == 0 || a.machine.Active() != nil {
		return bt.StatusFailure
	}
	sit, _ := a.situation()
	scores := a.arbiter.Evaluate(a.arch.Specials, sit, a.machine)
	a.lastScores = scores

	best, ok := arbitration.Pick(scores)
	if !ok {
		a.arbitrated("")
		return bt.StatusFailure
	}
	if !a.machine.Start(best.Ability, a.now, a, a.abilityEnv()) {
		return bt.StatusFailure
	}
	a.arbitrated(best.ID)
	a.setState(Special(best.Index))
	return bt.StatusSuccess
}

func (a *Agent) arbitrated(selected string) {
	if a.onArbitrate != nil {
		a.onArbitrate(a.arch.ID, selected)
	}
}

func (a *Agent) inBasicRange(_ *bt.Blackboard) bool {
	if a.arch.Basic == nil {
		return false
	}
	sit, _ := a.situation()
	return sit.HasTarget && a.arch.Basic.InRange(sit.Distance)
}

// basicAttack 先转向目标，朝向满足容忍角后出手
// 转向期间 Sequence 直接恢复到本节点，距离需在此重新检查
func (a *Agent) basicAttack(_ context.Context, _ *bt.Blackboard) bt.Status {
	basic := a.arch.Basic
	sit, pos := a.situation()
	if !sit.HasTarget || !basic.InRange(sit.Distance) {
		return bt.StatusFailure
	}
	if a.machine.Eligibility(basic, a.now) != ability.ReasonReady {
		return bt.StatusFailure
	}
	if sit.FacingError > basic.FacingTolerance {
		a.turnTowards(pos.Sub(a.pose.Pos), a.dt)
		a.setState(StateBasicAttack)
		return bt.StatusRunning
	}
	if !a.machine.Start(basic, a.now, a, a.abilityEnv()) {
		return bt.StatusFailure
	}
	a.setState(StateBasicAttack)
	return bt.StatusSuccess
}

// chase 直线接近目标，进入普通攻击距离后原地面向目标
func (a *Agent) chase(_ context.Context, _ *bt.Blackboard) bt.Status {
	p, ok := a.targetPose()
	if !ok {
		return bt.StatusFailure
	}
	stop := a.arch.Radius
	if a.arch.Basic != nil && a.arch.Basic.MaxRange > 0 {
		stop = a.arch.Basic.Midpoint()
	}
	if a.moveTowards(p.Pos, stop, 1) {
		a.setState(StateIdle)
	} else {
		a.setState(StateChase)
	}
	return bt.StatusRunning
}

// patrol 在出生点附近随机游走
func (a *Agent) patrol(_ context.Context, bb *bt.Blackboard) bt.Status {
	if a.arch.PatrolRadius <= 0 {
		a.setState(StateIdle)
		return bt.StatusRunning
	}

	var goal geom.Vec2
	if v, ok := bb.Get(bt.KeyPatrolGoal); ok {
		goal, _ = v.(geom.Vec2)
	} else {
		goal = a.nextPatrolGoal()
		bb.Set(bt.KeyPatrolGoal, goal)
	}

	if a.moveTowards(goal, 0, patrolSpeedScale) {
		bb.Set(bt.KeyPatrolGoal, a.nextPatrolGoal())
	}
	a.setState(StatePatrol)
	return bt.StatusRunning
}

func (a *Agent) nextPatrolGoal() geom.Vec2 {
	angle := a.rng.Float64() * 2 * math.Pi
	dist := a.arch.PatrolRadius * a.rng.Float64()
	return a.home.Add(geom.FromAngle(angle).Scale(dist))
}
