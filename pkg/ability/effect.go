package ability

import (
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
	"github.com/lk2023060901/xdooria-combat/pkg/world"
)

// Host 技能执行者，由 Agent 实现
type Host interface {
	Self() entity.Handle
	Pose() world.Pose
	SetPose(p world.Pose)
	// Target 黑板中当前有效的目标
	Target() (entity.Handle, bool)
	// TrackTarget 前摇期间转向目标
	TrackTarget(dt time.Duration)
}

// Env 技能结算依赖的外部协作者，字段可以为空
type Env struct {
	Query  world.Query
	Damage world.DamageSink
}

// Context 单次阶段回调的上下文
type Context struct {
	Exec *Execution
	Host Host
	Env  Env
	Now  time.Duration
}

// primaryHeld 黑板是否仍持有阶段开始时的目标
func (c *Context) primaryHeld() bool {
	h, ok := c.Host.Target()
	return ok && h == c.Exec.Primary
}

// Strike 对形状内尚未命中的目标造成一次伤害，返回本次命中数
// 黑板已不再持有的主目标会被跳过
func (c *Context) Strike(shape geom.Shape, damage int32) int {
	if c.Env.Query == nil {
		return 0
	}
	self := c.Host.Self()
	hits := 0
	for _, h := range c.Env.Query.Overlap(self, shape) {
		if h == self || c.Exec.HasHit(h) {
			continue
		}
		if !c.Exec.Primary.IsNil() && h == c.Exec.Primary && !c.primaryHeld() {
			continue
		}
		c.Exec.Hit(h)
		hits++
		if c.Env.Damage != nil && damage > 0 {
			c.Env.Damage.ApplyDamage(h, damage)
		}
	}
	return hits
}

// Shape 以 origin 为起点按技能配置构造判定区域
func (c *Context) Shape(origin geom.Vec2) geom.Shape {
	spec := c.Exec.Def.Effect
	dir := c.Exec.Direction
	switch spec.Shape {
	case geom.ShapeCone:
		return geom.Cone(origin, dir, spec.Radius, spec.Angle)
	case geom.ShapeLine:
		return geom.Line(origin, dir, spec.Radius, spec.Width)
	default:
		return geom.Sphere(origin.Add(dir.Scale(spec.Offset)), spec.Radius)
	}
}

// Effect 技能生效策略
type Effect interface {
	// Begin 进入 Commit
	Begin(c *Context)
	// Step Commit 期间每次推进
	Step(c *Context, dt time.Duration)
	// Impact 瞬时结算点
	Impact(c *Context)
}

// Strike 进入 Commit 时对区域结算
type Strike struct{}

func (Strike) Begin(c *Context) {
	c.Strike(c.Shape(c.Host.Pose().Pos), c.Exec.Def.Effect.Damage)
}

func (Strike) Step(*Context, time.Duration) {}

func (Strike) Impact(*Context) {}

// Traversal 冲刺/跳跃，Commit 期间沿锁定方向位移，每个目标至多命中一次
type Traversal struct{}

func (t Traversal) Begin(c *Context) {
	t.sweep(c)
}

func (t Traversal) Step(c *Context, dt time.Duration) {
	spec := c.Exec.Def.Effect
	pose := c.Host.Pose()
	pose.Pos = pose.Pos.Add(c.Exec.Direction.Scale(spec.Speed * dt.Seconds()))
	if !c.Exec.Direction.IsZero() {
		pose.Facing = c.Exec.Direction
	}
	c.Host.SetPose(pose)
	t.sweep(c)
}

func (Traversal) Impact(*Context) {}

func (Traversal) sweep(c *Context) {
	spec := c.Exec.Def.Effect
	c.Strike(geom.Sphere(c.Host.Pose().Pos, spec.HitRadius), spec.Damage)
}

// Delayed Commit 时记录落点，Impact 时结算
type Delayed struct{}

func (Delayed) Begin(c *Context) {
	pose := c.Host.Pose()
	c.Exec.Marker = pose.Pos
	if c.Env.Query != nil && c.primaryHeld() {
		if p, ok := c.Env.Query.Resolve(c.Exec.Primary); ok {
			c.Exec.Marker = p.Pos
		}
	}
}

func (Delayed) Step(*Context, time.Duration) {}

func (Delayed) Impact(c *Context) {
	spec := c.Exec.Def.Effect
	c.Strike(geom.Sphere(c.Exec.Marker, spec.Radius), spec.Damage)
}

// Funcs 单个技能的覆盖回调，为空的字段沿用默认策略
type Funcs struct {
	Begin  func(c *Context)
	Step   func(c *Context, dt time.Duration)
	Impact func(c *Context)
}

type overridden struct {
	base Effect
	fn   Funcs
}

func (o overridden) Begin(c *Context) {
	if o.fn.Begin != nil {
		o.fn.Begin(c)
		return
	}
	o.base.Begin(c)
}

func (o overridden) Step(c *Context, dt time.Duration) {
	if o.fn.Step != nil {
		o.fn.Step(c, dt)
		return
	}
	o.base.Step(c, dt)
}

func (o overridden) Impact(c *Context) {
	if o.fn.Impact != nil {
		o.fn.Impact(c)
		return
	}
	o.base.Impact(c)
}

// Registry 技能 ID 到覆盖回调的映射，加载后只读
type Registry struct {
	overrides map[string]Funcs
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{overrides: make(map[string]Funcs)}
}

// Override 注册覆盖回调
func (r *Registry) Override(abilityID string, fn Funcs) *Registry {
	r.overrides[abilityID] = fn
	return r
}

// Resolve 返回技能的生效策略
func (r *Registry) Resolve(def *Definition) Effect {
	var base Effect
	switch def.Effect.Kind {
	case EffectTraversal:
		base = Traversal{}
	case EffectDelayed:
		base = Delayed{}
	default:
		base = Strike{}
	}
	if r == nil {
		return base
	}
	if fn, ok := r.overrides[def.ID]; ok {
		return overridden{base: base, fn: fn}
	}
	return base
}
