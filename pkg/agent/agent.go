package agent

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/ability"
	"github.com/lk2023060901/xdooria-combat/pkg/arbitration"
	"github.com/lk2023060901/xdooria-combat/pkg/bt"
	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/world"
)

// Env 每帧注入的外部协作者
type Env struct {
	Query     world.Query
	Damage    world.DamageSink
	Placer    world.Placer
	Authority world.Authority
}

// ArbitrationHook 仲裁结果回调，selected 为空表示没有技能通过门槛
type ArbitrationHook func(archetype, selected string)

// Option Agent 选项
type Option func(*Agent)

// WithNetID 设置复制层使用的网络 ID
func WithNetID(id uint64) Option {
	return func(a *Agent) { a.netID = id }
}

// WithSignals 设置表现层信号接收方
func WithSignals(s ability.SignalSink) Option {
	return func(a *Agent) {
		if s != nil {
			a.signals = s
		}
	}
}

// WithRegistry 设置技能覆盖回调
func WithRegistry(r *ability.Registry) Option {
	return func(a *Agent) { a.registry = r }
}

// WithArbiter 设置默认仲裁器，Archetype 自带配置时优先使用后者
func WithArbiter(arb *arbitration.Arbiter) Option {
	return func(a *Agent) {
		if arb != nil {
			a.arbiter = arb
		}
	}
}

// WithArbitrationHook 设置仲裁结果回调
func WithArbitrationHook(fn ArbitrationHook) Option {
	return func(a *Agent) { a.onArbitrate = fn }
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithSeed 设置巡逻随机种子，默认使用网络 ID
func WithSeed(seed uint64) Option {
	return func(a *Agent) { a.seed = &seed }
}

// WithLockout 设置默认全局锁定时长，Archetype 自带配置时优先使用后者
func WithLockout(d time.Duration) Option {
	return func(a *Agent) { a.lockout = d }
}

// Agent 战斗 NPC，拥有唯一的黑板、行为树与技能状态机
// 只能在所属 zone 的单线程步进中访问
type Agent struct {
	arch   *Archetype
	handle entity.Handle
	netID  uint64
	home   geom.Vec2
	pose   world.Pose

	state State
	// globalBusy 独立于技能的静止计时
	globalBusy time.Duration

	bb      *bt.Blackboard
	tree    *bt.Tree
	machine *ability.Machine
	arbiter *arbitration.Arbiter

	registry    *ability.Registry
	signals     ability.SignalSink
	onArbitrate ArbitrationHook
	logger      logger.Logger
	lockout     time.Duration
	seed        *uint64
	rng         *rand.Rand

	// 当前帧上下文，仅在 Tick 内有效
	env Env
	now time.Duration
	dt  time.Duration

	lastScores []arbitration.Score
	destroyed  bool
}

// New 创建 Agent，handle 为其在世界中的实体句柄
func New(arch *Archetype, handle entity.Handle, pose world.Pose, opts ...Option) *Agent {
	a := &Agent{
		arch:    arch,
		handle:  handle,
		home:    pose.Pos,
		pose:    pose,
		bb:      bt.NewBlackboard(),
		arbiter: arbitration.New(nil),
		signals: ability.Signals(nil),
		logger:  logger.NewNoop(),
		lockout: ability.DefaultLockout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.pose.Facing.IsZero() {
		a.pose.Facing = geom.V(1, 0)
	}
	if arch.Arbitration != nil {
		a.arbiter = arbitration.New(arch.Arbitration)
	}
	if arch.Lockout > 0 {
		a.lockout = arch.Lockout
	}

	seed := a.netID
	if a.seed != nil {
		seed = *a.seed
	}
	a.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	a.logger = a.logger.Named("agent").WithFields("agent", handle.String(), "archetype", arch.ID)
	a.machine = ability.NewMachine(handle,
		ability.WithLockout(a.lockout),
		ability.WithSignals(a.signals),
		ability.WithRegistry(a.registry),
		ability.WithLogger(a.logger),
	)
	a.tree = bt.NewTree(a.buildTree(), a.bb, a.logger)
	a.Hold(arch.SpawnDelay)
	return a
}

// Handle 世界实体句柄
func (a *Agent) Handle() entity.Handle {
	return a.handle
}

// NetID 网络 ID
func (a *Agent) NetID() uint64 {
	return a.netID
}

// Archetype 所属类型
func (a *Agent) Archetype() *Archetype {
	return a.arch
}

// State 当前粗粒度状态
func (a *Agent) State() State {
	return a.state
}

// Machine 技能状态机
func (a *Agent) Machine() *ability.Machine {
	return a.machine
}

// Blackboard 黑板
func (a *Agent) Blackboard() *bt.Blackboard {
	return a.bb
}

// Busy 技能 Windup 至 Stoppage 或全局静止计时未结束
func (a *Agent) Busy() bool {
	return a.globalBusy > 0 || a.machine.Busy()
}

// Hold 让 Agent 在 d 时间内保持静止，不影响当前技能
func (a *Agent) Hold(d time.Duration) {
	a.globalBusy = max(a.globalBusy, d)
}

// Destroyed 是否已销毁
func (a *Agent) Destroyed() bool {
	return a.destroyed
}

// Tick 推进一帧，now 为本帧结束时刻
// 非权威节点直接返回 false，不做任何修改
func (a *Agent) Tick(ctx context.Context, now, dt time.Duration, env Env) bool {
	if a.destroyed {
		return false
	}
	if env.Authority != nil && !env.Authority.IsAuthority(a.handle) {
		return false
	}

	a.env, a.now, a.dt = env, now, dt
	defer func() { a.env = Env{} }()

	if a.globalBusy > 0 {
		a.globalBusy = max(a.globalBusy-dt, 0)
	}

	a.machine.Advance(now, dt, a, a.abilityEnv())
	a.perceive(now)

	if !a.Busy() {
		a.tree.Tick(ctx)
	}
	a.syncState()

	if env.Placer != nil {
		env.Placer.Place(a.handle, a.pose)
	}
	return true
}

// Destroy 死亡或移除时调用，立即终止技能，不执行 Recovery
func (a *Agent) Destroy(now time.Duration) {
	if a.destroyed {
		return
	}
	a.destroyed = true
	a.machine.Abort(now)
	a.tree.Reset()
	a.bb.Clear()
	a.logger.Debug("agent destroyed")
}

func (a *Agent) abilityEnv() ability.Env {
	return ability.Env{Query: a.env.Query, Damage: a.env.Damage}
}

func (a *Agent) setState(s State) {
	if s == a.state {
		return
	}
	prev := a.state
	a.state = s
	a.logger.Debug("agent state changed", "from", prev.String(), "to", s.String())

	sig := ability.Signal{
		Agent:  a.handle,
		Name:   SignalStateChanged,
		Phase:  a.machine.Phase(),
		At:     a.now,
		Detail: s.String(),
	}
	if e := a.machine.Active(); e != nil {
		sig.Ability = e.Def.ID
	}
	a.signals.Emit(sig)
}

// syncState 技能执行期间状态跟随技能
func (a *Agent) syncState() {
	if e := a.machine.Active(); e != nil {
		a.setState(a.stateFor(e.Def))
		return
	}
	if a.globalBusy > 0 {
		a.setState(StateIdle)
	}
}

func (a *Agent) stateFor(def *ability.Definition) State {
	for i, s := range a.arch.Specials {
		if s == def {
			return Special(i)
		}
	}
	return StateBasicAttack
}

// ability.Host

func (a *Agent) Self() entity.Handle {
	return a.handle
}

func (a *Agent) Pose() world.Pose {
	return a.pose
}

func (a *Agent) SetPose(p world.Pose) {
	a.pose = p
}

func (a *Agent) Target() (entity.Handle, bool) {
	return a.bb.Target(a.validTarget)
}

func (a *Agent) TrackTarget(dt time.Duration) {
	if p, ok := a.targetPose(); ok {
		a.turnTowards(p.Pos.Sub(a.pose.Pos), dt)
	}
}
