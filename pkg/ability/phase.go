package ability

// Phase 技能执行阶段
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseWindup
	PhaseCommit
	PhaseImpact
	PhaseStoppage
	PhaseRecovery
)

func (p Phase) String() string {
	switch p {
	case PhaseWindup:
		return "windup"
	case PhaseCommit:
		return "commit"
	case PhaseImpact:
		return "impact"
	case PhaseStoppage:
		return "stoppage"
	case PhaseRecovery:
		return "recovery"
	default:
		return "idle"
	}
}

// next 下一阶段，Recovery 之后回到 Idle
func (p Phase) next() Phase {
	if p >= PhaseRecovery {
		return PhaseIdle
	}
	return p + 1
}

// Busy Windup 到 Stoppage 期间 Agent 不移动、不评估行为树
func (p Phase) Busy() bool {
	return p >= PhaseWindup && p <= PhaseStoppage
}

// Reason 技能不可用原因
type Reason uint8

const (
	ReasonReady    Reason = iota
	ReasonActive          // 已有技能在执行
	ReasonCooldown        // 自身冷却中
	ReasonLockout         // 特殊技能全局锁定中
)

func (r Reason) String() string {
	switch r {
	case ReasonActive:
		return "active"
	case ReasonCooldown:
		return "cooldown"
	case ReasonLockout:
		return "lockout"
	default:
		return "ready"
	}
}
