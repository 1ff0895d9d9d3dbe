package agent

import "strconv"

// State Agent 粗粒度状态
type State int

const (
	StateIdle State = iota
	StatePatrol
	StateChase
	StateBasicAttack
	// StateSpecial1 第一个特殊技能，后续依次递增
	StateSpecial1
)

// Special 第 i 个（从 0 开始）特殊技能对应的状态
func Special(i int) State {
	return StateSpecial1 + State(i)
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePatrol:
		return "patrol"
	case StateChase:
		return "chase"
	case StateBasicAttack:
		return "basic_attack"
	}
	if s >= StateSpecial1 {
		return "special" + strconv.Itoa(int(s-StateSpecial1)+1)
	}
	return "unknown"
}

// SignalStateChanged 状态切换信号
const SignalStateChanged = "state-changed"
