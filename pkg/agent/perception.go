package agent

import (
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/bt"
	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/world"
)

// validTarget 目标存活且未超出丢失距离
func (a *Agent) validTarget(h entity.Handle) bool {
	if a.env.Query == nil || h == a.handle {
		return false
	}
	p, ok := a.env.Query.Resolve(h)
	if !ok {
		return false
	}
	return p.Pos.Dist(a.pose.Pos) <= a.arch.loseRadius()
}

// targetPose 当前有效目标的位姿
func (a *Agent) targetPose() (world.Pose, bool) {
	h, ok := a.bb.Target(a.validTarget)
	if !ok {
		return world.Pose{}, false
	}
	return a.env.Query.Resolve(h)
}

// perceive 校验目标并按扫描间隔重新选取最近的敌人
func (a *Agent) perceive(now time.Duration) {
	current, hasTarget := a.bb.Target(a.validTarget)

	if a.env.Query != nil && a.scanDue(now) {
		a.bb.Set(bt.KeyLastScan, now)
		if h, ok := a.env.Query.FindNearestCandidate(a.handle, a.pose.Pos, a.arch.PerceptionRadius); ok {
			if !hasTarget || h != current {
				a.logger.Debug("target acquired", "target", h.String())
			}
			a.bb.SetTarget(h)
			current, hasTarget = h, true
		}
	}

	if !hasTarget {
		a.bb.ClearTarget()
		return
	}
	if p, ok := a.env.Query.Resolve(current); ok {
		a.bb.Set(bt.KeyTargetDist, p.Pos.Dist(a.pose.Pos))
	}
}

func (a *Agent) scanDue(now time.Duration) bool {
	v, ok := a.bb.Get(bt.KeyLastScan)
	if !ok {
		return true
	}
	last, ok := v.(time.Duration)
	return !ok || now-last >= a.arch.ScanInterval
}

// targetDistance 黑板缓存的目标距离
func (a *Agent) targetDistance() (float64, bool) {
	if _, ok := a.bb.PeekTarget(); !ok {
		return 0, false
	}
	return a.bb.GetFloat64(bt.KeyTargetDist)
}
