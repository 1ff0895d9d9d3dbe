package agent

import (
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/arbitration"
	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/world"
)

// View Agent 的只读快照，供复制层与管理接口使用
type View struct {
	Handle     entity.Handle `json:"handle" codec:"handle"`
	NetID      uint64        `json:"net_id" codec:"net_id"`
	Archetype  string        `json:"archetype" codec:"archetype"`
	Pose       world.Pose    `json:"pose" codec:"pose"`
	State      string        `json:"state" codec:"state"`
	Ability    string        `json:"ability,omitempty" codec:"ability,omitempty"`
	Phase      string        `json:"phase" codec:"phase"`
	Exhausted  bool          `json:"exhausted" codec:"exhausted"`
	SpeedMult  float64       `json:"speed_mult" codec:"speed_mult"`
	Busy       bool          `json:"busy" codec:"busy"`
	Target     entity.Handle `json:"target" codec:"target"`
	TargetDist float64       `json:"target_dist,omitempty" codec:"target_dist,omitempty"`
}

// View 生成快照
func (a *Agent) View() View {
	v := View{
		Handle:    a.handle,
		NetID:     a.netID,
		Archetype: a.arch.ID,
		Pose:      a.pose,
		State:     a.state.String(),
		Phase:     a.machine.Phase().String(),
		Exhausted: a.machine.Exhausted(),
		SpeedMult: a.machine.SpeedMultiplier(),
		Busy:      a.Busy(),
	}
	if e := a.machine.Active(); e != nil {
		v.Ability = e.Def.ID
	}
	if h, ok := a.bb.PeekTarget(); ok {
		v.Target = h
		v.TargetDist, _ = a.targetDistance()
	}
	if a.Busy() {
		v.SpeedMult = 0
	}
	return v
}

// Scores 最近一次特殊技能仲裁的评分表
func (a *Agent) Scores() []arbitration.Score {
	return a.lastScores
}

// Evaluate 以给定态势对特殊技能评分，不修改 Agent
func (a *Agent) Evaluate(now time.Duration, distance, facingError float64) []arbitration.Score {
	sit := arbitration.Situation{
		Now:         now,
		HasTarget:   true,
		Distance:    distance,
		FacingError: facingError,
	}
	return a.arbiter.Evaluate(a.arch.Specials, sit, a.machine)
}
