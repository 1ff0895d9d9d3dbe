// Package zone 战斗区域：一个世界、一组 Agent 和一条模拟时钟
//
// zone 内部是单线程的：Step 持锁按出生顺序逐个推进 Agent，
// 出生、移除与查询都经过同一把锁。不同 zone 之间互不共享状态，
// 由 Manager 在协程池中并行步进。
package zone

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/xdooria-combat/app/combat/internal/signal"
	"github.com/lk2023060901/xdooria-combat/pkg/ability"
	"github.com/lk2023060901/xdooria-combat/pkg/agent"
	"github.com/lk2023060901/xdooria-combat/pkg/arbitration"
	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
	"github.com/lk2023060901/xdooria-combat/pkg/idgen"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/sentry"
	"github.com/lk2023060901/xdooria-combat/pkg/world"
)

// Observer zone 侧指标
type Observer interface {
	ObserveTick(zone string, took, budget time.Duration)
	ObserveArbitration(archetype, selected string)
	ObserveDamage(zone string, amount int32, killed bool)
	ObserveAgentPanic(zone string)
	SetAgents(zone string, n int)
}

type nopObserver struct{}

func (nopObserver) ObserveTick(string, time.Duration, time.Duration) {}
func (nopObserver) ObserveArbitration(string, string)                {}
func (nopObserver) ObserveDamage(string, int32, bool)                {}
func (nopObserver) ObserveAgentPanic(string)                         {}
func (nopObserver) SetAgents(string, int)                            {}

type nopReporter struct{}

func (nopReporter) CaptureException(error, map[string]string) {}
func (nopReporter) RecoverPanic(any, map[string]string)       {}

// Option zone 选项
type Option func(*Zone)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(z *Zone) {
		if l != nil {
			z.logger = l
		}
	}
}

// WithSink 设置信号接收方
func WithSink(s signal.Sink) Option {
	return func(z *Zone) {
		if s != nil {
			z.sink = s
		}
	}
}

// WithObserver 设置指标观察者
func WithObserver(o Observer) Option {
	return func(z *Zone) {
		if o != nil {
			z.observer = o
		}
	}
}

// WithReporter 设置 panic 上报
func WithReporter(r sentry.Reporter) Option {
	return func(z *Zone) {
		if r != nil {
			z.reporter = r
		}
	}
}

// WithIDGenerator 设置网络 ID 生成器
func WithIDGenerator(g idgen.Generator) Option {
	return func(z *Zone) {
		if g != nil {
			z.ids = g
		}
	}
}

// WithPublisher 追加快照接收方
func WithPublisher(p Publisher) Option {
	return func(z *Zone) {
		if p != nil {
			z.publishers = append(z.publishers, p)
		}
	}
}

// WithRegistry 设置技能覆盖回调
func WithRegistry(r *ability.Registry) Option {
	return func(z *Zone) { z.registry = r }
}

// WithOwners 设置权威表，默认本节点拥有全部实体
func WithOwners(t *world.OwnerTable) Option {
	return func(z *Zone) {
		if t != nil {
			z.owners = t
		}
	}
}

// Zone 战斗区域
type Zone struct {
	config *Config
	sim    *SimConfig
	logger logger.Logger

	world      *world.Memory
	owners     *world.OwnerTable
	arbiter    *arbitration.Arbiter
	registry   *ability.Registry
	sink       signal.Sink
	observer   Observer
	reporter   sentry.Reporter
	ids        idgen.Generator
	publishers []Publisher

	mu      sync.Mutex
	now     time.Duration
	tick    uint64
	agents  []*agent.Agent
	byNet   map[uint64]*agent.Agent
	pending []signal.Event

	last atomic.Pointer[Snapshot]
}

// New 创建 zone
func New(cfg *Config, sim *SimConfig, opts ...Option) (*Zone, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge zone config: %w", err)
	}
	if err := config.Validate(newCfg); err != nil {
		return nil, fmt.Errorf("invalid zone config: %w", err)
	}
	newSim, err := config.MergeConfig(DefaultSimConfig(), sim)
	if err != nil {
		return nil, fmt.Errorf("failed to merge sim config: %w", err)
	}
	if err := config.Validate(newSim); err != nil {
		return nil, fmt.Errorf("invalid sim config: %w", err)
	}

	z := &Zone{
		config:   newCfg,
		sim:      newSim,
		logger:   logger.NewNoop(),
		world:    world.NewMemory(newCfg.Capacity),
		owners:   world.NewOwnerTable(true),
		arbiter:  arbitration.New(&newSim.Arbitration),
		sink:     signal.Fanout(nil),
		observer: nopObserver{},
		reporter: nopReporter{},
		ids:      idgen.NewSequence(0),
		byNet:    make(map[uint64]*agent.Agent),
	}
	for _, opt := range opts {
		opt(z)
	}
	z.logger = z.logger.Named("zone").WithFields("zone", newCfg.ID)
	z.world.OnDamage(func(ev world.DamageEvent) {
		z.observer.ObserveDamage(newCfg.ID, ev.Amount, ev.Killed)
	})
	z.last.Store(&Snapshot{Zone: newCfg.ID})
	return z, nil
}

// ID zone 标识
func (z *Zone) ID() string {
	return z.config.ID
}

// Config zone 配置
func (z *Zone) Config() Config {
	return *z.config
}

// Owners 权威表
func (z *Zone) Owners() *world.OwnerTable {
	return z.owners
}

// Owned 本节点当前是否是该 zone 的权威
func (z *Zone) Owned() bool {
	return z.owners.Owned()
}

// Spawn 按 Archetype 出生一个 Agent，faction 为空时使用 Archetype 的阵营
func (z *Zone) Spawn(arch *agent.Archetype, pos geom.Vec2, faction string) (agent.View, error) {
	if arch == nil {
		return agent.View{}, ErrNilArchetype
	}
	if faction == "" {
		faction = arch.Faction
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	if z.world.Len() >= z.config.Capacity {
		return agent.View{}, fmt.Errorf("%w: %d", ErrZoneFull, z.config.Capacity)
	}

	netID, err := z.ids.NextID()
	if err != nil {
		return agent.View{}, fmt.Errorf("zone: allocate net id: %w", err)
	}

	pose := world.Pose{Pos: z.config.Bounds.Clamp(pos), Facing: geom.V(1, 0)}
	h := z.world.Spawn(world.Body{
		Pose:    pose,
		Radius:  arch.Radius,
		Faction: faction,
		HP:      arch.MaxHP,
	})

	a := agent.New(arch, h, pose,
		agent.WithNetID(netID),
		agent.WithSignals(z.collector(netID)),
		agent.WithRegistry(z.registry),
		agent.WithArbiter(z.arbiter),
		agent.WithArbitrationHook(z.observer.ObserveArbitration),
		agent.WithLogger(z.logger),
		agent.WithLockout(z.sim.Lockout),
	)
	z.agents = append(z.agents, a)
	z.byNet[netID] = a

	z.logger.Debug("agent spawned",
		"net_id", netID,
		"archetype", arch.ID,
		"faction", faction,
		"pos", pose.Pos,
	)
	return a.View(), nil
}

// SpawnBody 加入一个没有决策逻辑的实体（例如玩家或训练假人）
func (z *Zone) SpawnBody(b world.Body) (entity.Handle, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.world.Len() >= z.config.Capacity {
		return entity.Handle{}, fmt.Errorf("%w: %d", ErrZoneFull, z.config.Capacity)
	}
	b.Pos = z.config.Bounds.Clamp(b.Pos)
	return z.world.Spawn(b), nil
}

// MoveBody 移动非 Agent 实体
func (z *Zone) MoveBody(h entity.Handle, pos geom.Vec2) bool {
	z.mu.Lock()
	defer z.mu.Unlock()

	if _, ok := z.byHandle(h); ok {
		return false
	}
	b, ok := z.world.Body(h)
	if !ok {
		return false
	}
	b.Pos = z.config.Bounds.Clamp(pos)
	return true
}

// Body 读取实体
func (z *Zone) Body(h entity.Handle) (world.Body, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()

	b, ok := z.world.Body(h)
	if !ok {
		return world.Body{}, false
	}
	return *b, true
}

// Despawn 移除 Agent，正在执行的技能立即终止
func (z *Zone) Despawn(netID uint64) bool {
	z.mu.Lock()
	defer z.mu.Unlock()

	a, ok := z.byNet[netID]
	if !ok {
		return false
	}
	z.remove(a)
	z.agents = slices.DeleteFunc(z.agents, func(x *agent.Agent) bool { return x == a })
	return true
}

// Alive Agent 是否仍在 zone 中
func (z *Zone) Alive(netID uint64) bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	_, ok := z.byNet[netID]
	return ok
}

// Len Agent 数量
func (z *Zone) Len() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.agents)
}

// Now 当前模拟时间
func (z *Zone) Now() time.Duration {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.now
}

// Agents 全部 Agent 的快照，按出生顺序
func (z *Zone) Agents() []agent.View {
	z.mu.Lock()
	defer z.mu.Unlock()

	out := make([]agent.View, 0, len(z.agents))
	for _, a := range z.agents {
		out = append(out, a.View())
	}
	return out
}

// Agent 单个 Agent 的快照
func (z *Zone) Agent(netID uint64) (agent.View, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()

	a, ok := z.byNet[netID]
	if !ok {
		return agent.View{}, false
	}
	return a.View(), true
}

// Scores Agent 最近一次仲裁的评分表
func (z *Zone) Scores(netID uint64) ([]arbitration.Score, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	a, ok := z.byNet[netID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrAgentNotFound, netID)
	}
	return slices.Clone(a.Scores()), nil
}

// Snapshot 最近一次步进发布的快照
func (z *Zone) Snapshot() *Snapshot {
	return z.last.Load()
}

// Step 推进一帧，dt 超过 MaxDT 时截断
func (z *Zone) Step(ctx context.Context, dt time.Duration) *Snapshot {
	start := time.Now()
	dt = min(max(dt, 0), z.sim.MaxDT)

	z.mu.Lock()
	z.tick++
	z.now += dt
	env := agent.Env{
		Query:     z.world,
		Damage:    z.world,
		Placer:    z.world,
		Authority: z.owners,
	}
	for _, a := range z.agents {
		// 本帧已被击杀的 Agent 不再行动
		if b, ok := z.world.Body(a.Handle()); !ok || b.Dead {
			continue
		}
		z.tickAgent(ctx, a, dt, env)
	}
	z.reap()

	events := z.pending
	z.pending = nil
	snap := z.snapshot(events)
	n := len(z.agents)
	z.mu.Unlock()

	z.last.Store(snap)
	z.sink.Publish(events)
	for _, p := range z.publishers {
		p.PublishSnapshot(snap)
	}

	z.observer.SetAgents(z.config.ID, n)
	z.observer.ObserveTick(z.config.ID, time.Since(start), z.sim.Budget())
	return snap
}

// tickAgent 单个 Agent 的 panic 不影响其他 Agent，出问题的 Agent 在本帧移除
func (z *Zone) tickAgent(ctx context.Context, a *agent.Agent, dt time.Duration, env agent.Env) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		z.logger.Error("agent tick panicked",
			"net_id", a.NetID(),
			"archetype", a.Archetype().ID,
			"panic", r,
			"stack", string(debug.Stack()),
		)
		z.reporter.RecoverPanic(r, map[string]string{
			"zone":      z.config.ID,
			"archetype": a.Archetype().ID,
		})
		z.observer.ObserveAgentPanic(z.config.ID)
		if b, ok := z.world.Body(a.Handle()); ok {
			b.Dead = true
		}
	}()
	a.Tick(ctx, z.now, dt, env)
}

// reap 移除死亡的 Agent 与其他死亡实体
func (z *Zone) reap() {
	z.agents = slices.DeleteFunc(z.agents, func(a *agent.Agent) bool {
		b, ok := z.world.Body(a.Handle())
		if ok && !b.Dead {
			return false
		}
		z.remove(a)
		return true
	})

	var dead []entity.Handle
	z.world.Each(func(h entity.Handle, b *world.Body) bool {
		if b.Dead {
			dead = append(dead, h)
		}
		return true
	})
	for _, h := range dead {
		z.world.Despawn(h)
		z.owners.Forget(h)
	}
}

func (z *Zone) remove(a *agent.Agent) {
	a.Destroy(z.now)
	z.world.Despawn(a.Handle())
	z.owners.Forget(a.Handle())
	delete(z.byNet, a.NetID())
	z.logger.Debug("agent removed", "net_id", a.NetID(), "archetype", a.Archetype().ID)
}

func (z *Zone) byHandle(h entity.Handle) (*agent.Agent, bool) {
	for _, a := range z.agents {
		if a.Handle() == h {
			return a, true
		}
	}
	return nil, false
}

// collector 信号在持锁期间产生，先缓存到帧末统一分发
func (z *Zone) collector(netID uint64) ability.SignalSink {
	return ability.SignalFunc(func(s ability.Signal) {
		z.pending = append(z.pending, signal.Event{
			Zone:   z.config.ID,
			Tick:   z.tick,
			NetID:  netID,
			Signal: s,
		})
	})
}

func (z *Zone) snapshot(events []signal.Event) *Snapshot {
	snap := &Snapshot{
		Zone:    z.config.ID,
		Tick:    z.tick,
		SimTime: z.now,
		Agents:  make([]AgentState, 0, len(z.agents)),
		Signals: events,
	}
	for _, a := range z.agents {
		var hp int32
		if b, ok := z.world.Body(a.Handle()); ok {
			hp = b.HP
		}
		snap.Agents = append(snap.Agents, stateOf(a.View(), hp))
	}
	return snap
}
