package ability

import (
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/entity"
)

// 表现层信号名
const (
	SignalWindupStarted   = "windup-started"
	SignalCommitStarted   = "commit-started"
	SignalImpact          = "impact"
	SignalStoppageStarted = "stoppage-started"
	SignalExhausted       = "exhausted"
	SignalRecoveryStarted = "recovery-started"
	SignalFinished        = "ability-finished"
	SignalAborted         = "ability-aborted"
)

// Signal 阶段切换事件，发出后不等待任何确认
type Signal struct {
	Agent   entity.Handle `json:"agent" codec:"agent"`
	Ability string        `json:"ability" codec:"ability"`
	Name    string        `json:"name" codec:"name"`
	Phase   Phase         `json:"phase" codec:"phase"`
	At      time.Duration `json:"at" codec:"at"`
	// Detail 附加信息，如 state-changed 的新状态
	Detail string `json:"detail,omitempty" codec:"detail,omitempty"`
}

// SignalSink 信号接收方
type SignalSink interface {
	Emit(s Signal)
}

// SignalFunc 函数式 SignalSink
type SignalFunc func(s Signal)

func (f SignalFunc) Emit(s Signal) {
	f(s)
}

// Signals 多路分发
type Signals []SignalSink

func (m Signals) Emit(s Signal) {
	for _, sink := range m {
		sink.Emit(s)
	}
}

type discard struct{}

func (discard) Emit(Signal) {}
