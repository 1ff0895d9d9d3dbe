package ability

import (
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/world"
)

// DefaultLockout 特殊技能共享的全局锁定时长
const DefaultLockout = 4 * time.Second

// Option Machine 选项
type Option func(*Machine)

// WithLockout 设置全局锁定时长
func WithLockout(d time.Duration) Option {
	return func(m *Machine) {
		if d >= 0 {
			m.lockout = d
		}
	}
}

// WithSignals 设置表现层信号接收方
func WithSignals(s SignalSink) Option {
	return func(m *Machine) {
		if s != nil {
			m.signals = s
		}
	}
}

// WithRegistry 设置技能覆盖回调注册表
func WithRegistry(r *Registry) Option {
	return func(m *Machine) {
		m.registry = r
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// Machine Agent 技能状态机
// Idle → Windup → Commit → Impact → Stoppage → Recovery → Idle
// 每个阶段保存已经过时间，由外部 Advance 推进，不跨帧挂起调用栈
type Machine struct {
	owner   entity.Handle
	lockout time.Duration

	// cooldowns 技能 ID → 最近一次 Recovery 结束时间
	cooldowns map[string]time.Duration
	// lastSpecialEnd 最近一次特殊技能 Recovery 结束时间
	lastSpecialEnd time.Duration
	hasSpecialEnd  bool

	exec *Execution

	registry *Registry
	signals  SignalSink
	logger   logger.Logger
}

// NewMachine 创建状态机
func NewMachine(owner entity.Handle, opts ...Option) *Machine {
	m := &Machine{
		owner:     owner,
		lockout:   DefaultLockout,
		cooldowns: make(map[string]time.Duration),
		signals:   discard{},
		logger:    logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Active 当前执行中的技能，空闲时为 nil，调用方不得修改
func (m *Machine) Active() *Execution {
	return m.exec
}

// Phase 当前阶段
func (m *Machine) Phase() Phase {
	if m.exec == nil {
		return PhaseIdle
	}
	return m.exec.Phase
}

// Busy Windup 至 Stoppage 期间为 true，Recovery 时已解除
func (m *Machine) Busy() bool {
	return m.exec != nil && m.exec.Phase.Busy()
}

// Exhausted Stoppage 末段标记
func (m *Machine) Exhausted() bool {
	return m.exec != nil && m.exec.Exhausted
}

// SpeedMultiplier 移动速度系数
// busy 时为 0，Recovery 期间从 0.3 线性恢复到 1
func (m *Machine) SpeedMultiplier() float64 {
	if m.exec == nil {
		return 1
	}
	if m.exec.Phase.Busy() {
		return 0
	}
	if m.exec.Phase != PhaseRecovery {
		return 1
	}
	return geom.Lerp(0.3, 1.0, m.exec.Progress())
}

// Lockout 全局锁定时长
func (m *Machine) Lockout() time.Duration {
	return m.lockout
}

// CooldownRemaining 技能剩余冷却
func (m *Machine) CooldownRemaining(def *Definition, now time.Duration) time.Duration {
	last, ok := m.cooldowns[def.ID]
	if !ok {
		return 0
	}
	return max(def.Cooldown-(now-last), 0)
}

// LockoutRemaining 全局锁定剩余时间
func (m *Machine) LockoutRemaining(now time.Duration) time.Duration {
	if !m.hasSpecialEnd {
		return 0
	}
	return max(m.lockout-(now-m.lastSpecialEnd), 0)
}

// Eligibility 判断技能当前是否可以开始
func (m *Machine) Eligibility(def *Definition, now time.Duration) Reason {
	if m.exec != nil {
		return ReasonActive
	}
	if m.CooldownRemaining(def, now) > 0 {
		return ReasonCooldown
	}
	if def.Special() && m.LockoutRemaining(now) > 0 {
		return ReasonLockout
	}
	return ReasonReady
}

// Start 请求开始技能，不满足条件时不做任何修改并返回 false
func (m *Machine) Start(def *Definition, now time.Duration, host Host, env Env) bool {
	if def == nil || m.Eligibility(def, now) != ReasonReady {
		return false
	}

	e := newExecution(def, now)
	e.effect = m.registry.Resolve(def)
	if h, ok := host.Target(); ok {
		e.Primary = h
	}

	pose := host.Pose()
	e.Direction = pose.Facing
	if def.LockFacing {
		e.Direction = m.aim(e, pose, env)
		if !e.Direction.IsZero() {
			pose.Facing = e.Direction
			host.SetPose(pose)
		}
	}

	m.exec = e
	m.emit(e, SignalWindupStarted, now)
	m.logger.Debug("ability started", "agent", m.owner.String(), "ability", def.ID)

	// 零时长阶段立即完成
	m.Advance(now, 0, host, env)
	return true
}

// Advance 推进当前技能，now 为本帧结束时刻
// 一次较大的 dt 可以连续跨越多个阶段，多余时间顺延到下一阶段
func (m *Machine) Advance(now, dt time.Duration, host Host, env Env) {
	dt = max(dt, 0)
	at := now - dt
	for m.exec != nil {
		e := m.exec
		left := e.Def.duration(e.Phase) - e.Elapsed
		if dt < left {
			m.during(e, dt, host, env, at+dt)
			e.Elapsed += dt
			m.checkExhausted(e, now)
			return
		}
		if left > 0 {
			m.during(e, left, host, env, at+left)
			at += left
			dt -= left
		}
		e.Elapsed = e.Def.duration(e.Phase)
		m.enter(e, e.Phase.next(), at, host, env)
	}
}

// Abort 立即终止当前技能，不执行 Recovery，不记录冷却
func (m *Machine) Abort(now time.Duration) {
	e := m.exec
	if e == nil {
		return
	}
	m.exec = nil
	m.emit(e, SignalAborted, now)
	m.logger.Debug("ability aborted", "agent", m.owner.String(), "ability", e.Def.ID, "phase", e.Phase.String())
}

func (m *Machine) during(e *Execution, step time.Duration, host Host, env Env, at time.Duration) {
	if step <= 0 {
		return
	}
	switch e.Phase {
	case PhaseWindup:
		if !e.Def.LockFacing {
			host.TrackTarget(step)
		}
	case PhaseCommit:
		e.effect.Step(&Context{Exec: e, Host: host, Env: env, Now: at}, step)
	}
}

func (m *Machine) checkExhausted(e *Execution, now time.Duration) {
	if e.Phase != PhaseStoppage || e.Exhausted {
		return
	}
	d := e.Def.duration(PhaseStoppage)
	if (d-e.Elapsed)*4 < d {
		e.Exhausted = true
		m.emit(e, SignalExhausted, now)
	}
}

func (m *Machine) enter(e *Execution, next Phase, at time.Duration, host Host, env Env) {
	prev := e.Phase
	e.Phase = next
	e.Elapsed = 0
	e.PhaseAt = at
	m.logger.Debug("ability phase changed",
		"agent", m.owner.String(),
		"ability", e.Def.ID,
		"from", prev.String(),
		"to", next.String(),
	)

	switch next {
	case PhaseCommit:
		if h, ok := host.Target(); ok {
			e.Primary = h
		} else {
			e.Primary = entity.Nil
		}
		if !e.Def.LockFacing {
			e.Direction = host.Pose().Facing
		}
		m.emit(e, SignalCommitStarted, at)
		e.effect.Begin(&Context{Exec: e, Host: host, Env: env, Now: at})
	case PhaseImpact:
		e.effect.Impact(&Context{Exec: e, Host: host, Env: env, Now: at})
		m.emit(e, SignalImpact, at)
	case PhaseStoppage:
		m.emit(e, SignalStoppageStarted, at)
	case PhaseRecovery:
		e.Exhausted = false
		m.emit(e, SignalRecoveryStarted, at)
	case PhaseIdle:
		m.cooldowns[e.Def.ID] = at
		if e.Def.Special() {
			m.lastSpecialEnd = at
			m.hasSpecialEnd = true
		}
		m.exec = nil
		m.emit(e, SignalFinished, at)
	}
}

// aim 锁定方向：朝向目标，目标不可解析时沿用当前朝向
func (m *Machine) aim(e *Execution, pose world.Pose, env Env) geom.Vec2 {
	if env.Query != nil && !e.Primary.IsNil() {
		if p, ok := env.Query.Resolve(e.Primary); ok {
			if d := p.Pos.Sub(pose.Pos).Normalize(); !d.IsZero() {
				return d
			}
		}
	}
	return pose.Facing
}

func (m *Machine) emit(e *Execution, name string, at time.Duration) {
	m.signals.Emit(Signal{
		Agent:   m.owner,
		Ability: e.Def.ID,
		Name:    name,
		Phase:   e.Phase,
		At:      at,
	})
}
