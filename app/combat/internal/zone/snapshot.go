package zone

import (
	"time"

	"github.com/lk2023060901/xdooria-combat/app/combat/internal/signal"
	"github.com/lk2023060901/xdooria-combat/pkg/agent"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
)

// AgentState 复制给观察者的 Agent 状态
type AgentState struct {
	NetID     uint64    `json:"net_id" codec:"net_id"`
	Archetype string    `json:"archetype" codec:"archetype"`
	Pos       geom.Vec2 `json:"pos" codec:"pos"`
	Facing    geom.Vec2 `json:"facing" codec:"facing"`
	State     string    `json:"state" codec:"state"`
	Ability   string    `json:"ability,omitempty" codec:"ability,omitempty"`
	Phase     string    `json:"phase" codec:"phase"`
	Exhausted bool      `json:"exhausted" codec:"exhausted"`
	SpeedMult float64   `json:"speed_mult" codec:"speed_mult"`
	HP        int32     `json:"hp" codec:"hp"`
}

func stateOf(v agent.View, hp int32) AgentState {
	return AgentState{
		NetID:     v.NetID,
		Archetype: v.Archetype,
		Pos:       v.Pose.Pos,
		Facing:    v.Pose.Facing,
		State:     v.State,
		Ability:   v.Ability,
		Phase:     v.Phase,
		Exhausted: v.Exhausted,
		SpeedMult: v.SpeedMult,
		HP:        hp,
	}
}

// Snapshot 一次步进结束后的 zone 状态，发布后不可修改
type Snapshot struct {
	Zone    string         `json:"zone" codec:"zone"`
	Tick    uint64         `json:"tick" codec:"tick"`
	SimTime time.Duration  `json:"sim_time" codec:"sim_time"`
	Agents  []AgentState   `json:"agents" codec:"agents"`
	Signals []signal.Event `json:"signals,omitempty" codec:"signals,omitempty"`
}

// Find 按网络 ID 查找
func (s *Snapshot) Find(netID uint64) (AgentState, bool) {
	for _, a := range s.Agents {
		if a.NetID == netID {
			return a, true
		}
	}
	return AgentState{}, false
}

// Publisher 快照接收方，在 zone 锁外调用，不得修改快照
type Publisher interface {
	PublishSnapshot(s *Snapshot)
}

// PublisherFunc 函数式 Publisher
type PublisherFunc func(s *Snapshot)

func (f PublisherFunc) PublishSnapshot(s *Snapshot) {
	f(s)
}
