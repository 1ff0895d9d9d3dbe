package agent

import (
	"math"
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/geom"
)

// patrolSpeedScale 巡逻时的速度比例
const patrolSpeedScale = 0.5

// arriveEpsilon 到达判定距离
const arriveEpsilon = 0.05

// turnTowards 按转向速度朝 dir 旋转
func (a *Agent) turnTowards(dir geom.Vec2, dt time.Duration) {
	if dir.IsZero() {
		return
	}
	if a.arch.TurnRate <= 0 {
		a.pose.Facing = dir.Normalize()
		return
	}
	maxRad := a.arch.TurnRate * math.Pi / 180 * dt.Seconds()
	a.pose.Facing = geom.RotateTowards(a.pose.Facing, dir, maxRad)
}

// facingError 当前朝向与指向 p 的方向夹角（度）
func (a *Agent) facingError(p geom.Vec2) float64 {
	d := p.Sub(a.pose.Pos)
	if d.IsZero() {
		return 0
	}
	return geom.AngleBetween(a.pose.Facing, d)
}

// speed 当前有效移动速度，Recovery 期间按状态机系数衰减
func (a *Agent) speed(scale float64) float64 {
	if a.Busy() {
		return 0
	}
	return a.arch.Speed * scale * a.machine.SpeedMultiplier()
}

// moveTowards 直线移动到距离 goal 为 stop 的位置，到达返回 true
func (a *Agent) moveTowards(goal geom.Vec2, stop, scale float64) bool {
	d := goal.Sub(a.pose.Pos)
	dist := d.Len()
	a.turnTowards(d, a.dt)
	if dist <= stop+arriveEpsilon {
		return true
	}

	dest := goal.Sub(d.Normalize().Scale(stop))
	step := a.speed(scale) * a.dt.Seconds()
	a.pose.Pos = geom.MoveTowards(a.pose.Pos, dest, step)
	return a.pose.Pos.Dist(goal) <= stop+arriveEpsilon
}
