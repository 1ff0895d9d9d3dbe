package ability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
	"github.com/lk2023060901/xdooria-combat/pkg/world"
)

const ms = time.Millisecond

type fakeHost struct {
	self      entity.Handle
	pose      world.Pose
	target    entity.Handle
	hasTarget bool
	tracked   time.Duration
}

func (h *fakeHost) Self() entity.Handle          { return h.self }
func (h *fakeHost) Pose() world.Pose             { return h.pose }
func (h *fakeHost) SetPose(p world.Pose)         { h.pose = p }
func (h *fakeHost) TrackTarget(dt time.Duration) { h.tracked += dt }
func (h *fakeHost) Target() (entity.Handle, bool) {
	return h.target, h.hasTarget
}

func newHost() *fakeHost {
	return &fakeHost{pose: world.Pose{Facing: geom.V(1, 0)}}
}

type recorder struct {
	signals []Signal
}

func (r *recorder) Emit(s Signal) {
	r.signals = append(r.signals, s)
}

func (r *recorder) names() []string {
	out := make([]string, 0, len(r.signals))
	for _, s := range r.signals {
		out = append(out, s.Name)
	}
	return out
}

func timed(id string, kind Kind, windup, commit, stoppage, recovery time.Duration) *Definition {
	return &Definition{
		ID:       id,
		Kind:     kind,
		Windup:   windup,
		Commit:   commit,
		Stoppage: stoppage,
		Recovery: recovery,
		MaxRange: 10,
		Weight:   1,
		Effect:   EffectSpec{Kind: EffectStrike, Radius: 1},
	}
}

// runToIdle 以固定步长推进直到空闲，返回结束时刻
func runToIdle(t *testing.T, m *Machine, from, step time.Duration, host Host, env Env) time.Duration {
	t.Helper()
	now := from
	for i := 0; m.Active() != nil; i++ {
		require.Less(t, i, 10000, "ability never finished")
		now += step
		m.Advance(now, step, host, env)
	}
	return now
}

func TestMachine_PhaseOrder(t *testing.T) {
	rec := &recorder{}
	m := NewMachine(entity.Handle{Index: 1, Gen: 1}, WithSignals(rec))
	def := timed("slam", KindSpecial, 100*ms, 200*ms, 400*ms, time.Second)
	host := newHost()

	require.True(t, m.Start(def, 0, host, Env{}))
	assert.Equal(t, PhaseWindup, m.Phase())

	var seen []Phase
	now := time.Duration(0)
	for m.Active() != nil {
		now += 50 * ms
		m.Advance(now, 50*ms, host, Env{})
		p := m.Phase()
		if len(seen) > 0 && p != PhaseIdle {
			assert.GreaterOrEqual(t, p, seen[len(seen)-1], "phase went backwards")
		}
		seen = append(seen, p)
	}

	assert.Equal(t, []string{
		SignalWindupStarted,
		SignalCommitStarted,
		SignalImpact,
		SignalStoppageStarted,
		SignalExhausted,
		SignalRecoveryStarted,
		SignalFinished,
	}, rec.names())
	assert.Equal(t, 1700*ms, now)
	assert.Equal(t, 1700*ms, rec.signals[len(rec.signals)-1].At)
	assert.Equal(t, 100*ms, host.tracked)
}

func TestMachine_ExhaustedBoundary(t *testing.T) {
	rec := &recorder{}
	m := NewMachine(entity.Nil, WithSignals(rec))
	host := newHost()
	def := timed("slam", KindBasic, 0, 0, 100*ms, 100*ms)

	require.True(t, m.Start(def, 0, host, Env{}))
	require.Equal(t, PhaseStoppage, m.Phase())
	assert.False(t, m.Exhausted())

	// 剩余恰好 25% 不算耗尽
	m.Advance(75*ms, 75*ms, host, Env{})
	assert.Equal(t, PhaseStoppage, m.Phase())
	assert.False(t, m.Exhausted())

	m.Advance(76*ms, ms, host, Env{})
	assert.Equal(t, PhaseStoppage, m.Phase())
	assert.True(t, m.Exhausted())
	assert.Zero(t, m.SpeedMultiplier())

	m.Advance(100*ms, 24*ms, host, Env{})
	assert.Equal(t, PhaseRecovery, m.Phase())
	assert.False(t, m.Exhausted())
	assert.InDelta(t, 0.3, m.SpeedMultiplier(), 1e-9)

	var exhausted int
	for _, s := range rec.signals {
		if s.Name == SignalExhausted {
			exhausted++
			assert.Equal(t, 76*ms, s.At)
		}
	}
	assert.Equal(t, 1, exhausted)
}

func TestMachine_Exclusivity(t *testing.T) {
	m := NewMachine(entity.Nil)
	a := timed("a", KindBasic, 100*ms, 100*ms, 100*ms, 100*ms)
	b := timed("b", KindSpecial, 0, 0, 0, 0)
	host := newHost()

	require.True(t, m.Start(a, 0, host, Env{}))
	first := m.Active()

	for now := 10 * ms; m.Active() != nil; now += 10 * ms {
		assert.Equal(t, ReasonActive, m.Eligibility(b, now))
		assert.False(t, m.Start(b, now, host, Env{}), "second ability started at %v", now)
		assert.Same(t, first, m.Active())
		m.Advance(now, 10*ms, host, Env{})
	}
}

func TestMachine_Busy(t *testing.T) {
	m := NewMachine(entity.Nil)
	def := timed("a", KindBasic, 100*ms, 100*ms, 100*ms, 100*ms)
	host := newHost()

	assert.False(t, m.Busy())
	assert.Equal(t, 1.0, m.SpeedMultiplier())

	require.True(t, m.Start(def, 0, host, Env{}))
	for _, want := range []Phase{PhaseWindup, PhaseCommit, PhaseStoppage} {
		assert.Equal(t, want, m.Phase())
		assert.True(t, m.Busy())
		assert.Zero(t, m.SpeedMultiplier())
		m.Advance(m.Active().PhaseAt+100*ms, 100*ms, host, Env{})
	}
	assert.Equal(t, PhaseRecovery, m.Phase())
	assert.False(t, m.Busy())
}

func TestMachine_CooldownStampedAtRecoveryEnd(t *testing.T) {
	m := NewMachine(entity.Nil)
	def := timed("bite", KindBasic, 100*ms, 100*ms, 100*ms, 100*ms)
	def.Cooldown = 2 * time.Second
	host := newHost()

	require.True(t, m.Start(def, 0, host, Env{}))
	end := runToIdle(t, m, 0, 100*ms, host, Env{})
	require.Equal(t, 400*ms, end)

	tests := []struct {
		now  time.Duration
		want Reason
	}{
		{end, ReasonCooldown},
		{end + time.Second, ReasonCooldown},
		{end + 2*time.Second - 1, ReasonCooldown},
		{end + 2*time.Second, ReasonReady},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Eligibility(def, tt.now), "at %v", tt.now)
	}
	assert.Equal(t, time.Second, m.CooldownRemaining(def, end+time.Second))
}

func TestMachine_CooldownBetweenCompletions(t *testing.T) {
	def := timed("bite", KindBasic, 30*ms, 20*ms, 10*ms, 40*ms)
	def.Cooldown = 500 * ms
	host := newHost()

	var completions []time.Duration
	m := NewMachine(entity.Nil, WithSignals(SignalFunc(func(s Signal) {
		if s.Name == SignalFinished {
			completions = append(completions, s.At)
		}
	})))

	for now := time.Duration(0); now < 5*time.Second; now += 10 * ms {
		m.Advance(now, 10*ms, host, Env{})
		m.Start(def, now, host, Env{})
	}

	require.Greater(t, len(completions), 2)
	for i := 1; i < len(completions); i++ {
		assert.GreaterOrEqual(t, completions[i]-completions[i-1], def.Cooldown)
	}
}

func TestMachine_GlobalLockout(t *testing.T) {
	host := newHost()
	a := timed("leap", KindSpecial, 100*ms, 100*ms, 100*ms, 100*ms)
	b := timed("roar", KindSpecial, 100*ms, 100*ms, 100*ms, 100*ms)
	basic := timed("bite", KindBasic, 100*ms, 100*ms, 100*ms, 100*ms)

	t.Run("special blocks other specials", func(t *testing.T) {
		m := NewMachine(entity.Nil)
		require.True(t, m.Start(a, 0, host, Env{}))
		end := runToIdle(t, m, 0, 100*ms, host, Env{})

		assert.Equal(t, ReasonLockout, m.Eligibility(b, end))
		assert.Equal(t, ReasonLockout, m.Eligibility(b, end+3900*ms))
		assert.False(t, m.Start(b, end+3900*ms, host, Env{}))
		assert.Equal(t, ReasonReady, m.Eligibility(b, end+DefaultLockout))
		assert.Equal(t, ReasonReady, m.Eligibility(basic, end))
	})

	t.Run("basic does not lock specials", func(t *testing.T) {
		m := NewMachine(entity.Nil)
		require.True(t, m.Start(basic, 0, host, Env{}))
		end := runToIdle(t, m, 0, 100*ms, host, Env{})
		assert.Equal(t, ReasonReady, m.Eligibility(a, end))
		assert.Zero(t, m.LockoutRemaining(end))
	})

	t.Run("custom lockout", func(t *testing.T) {
		m := NewMachine(entity.Nil, WithLockout(time.Second))
		require.True(t, m.Start(a, 0, host, Env{}))
		end := runToIdle(t, m, 0, 100*ms, host, Env{})
		assert.Equal(t, ReasonLockout, m.Eligibility(b, end+999*ms))
		assert.Equal(t, ReasonReady, m.Eligibility(b, end+time.Second))
	})
}

func TestMachine_RecoveryRamp(t *testing.T) {
	m := NewMachine(entity.Nil)
	def := timed("a", KindBasic, 0, 0, 0, 2*time.Second)
	host := newHost()

	require.True(t, m.Start(def, 0, host, Env{}))
	require.Equal(t, PhaseRecovery, m.Phase())
	assert.InDelta(t, 0.3, m.SpeedMultiplier(), 1e-9)

	m.Advance(time.Second, time.Second, host, Env{})
	assert.InDelta(t, 0.65, m.SpeedMultiplier(), 1e-9)

	m.Advance(2*time.Second, time.Second, host, Env{})
	assert.Equal(t, PhaseIdle, m.Phase())
	assert.InDelta(t, 1.0, m.SpeedMultiplier(), 1e-9)
}

func TestMachine_ZeroDurations(t *testing.T) {
	rec := &recorder{}
	m := NewMachine(entity.Nil, WithSignals(rec))
	def := timed("blink", KindSpecial, 0, 0, 0, 0)
	def.Cooldown = time.Second

	require.True(t, m.Start(def, 5*time.Second, newHost(), Env{}))
	assert.Nil(t, m.Active())
	assert.NotContains(t, rec.names(), SignalExhausted)
	assert.Equal(t, SignalFinished, rec.names()[len(rec.names())-1])
	assert.Equal(t, time.Second, m.CooldownRemaining(def, 5*time.Second))
}

func TestMachine_LargeStepCarriesOver(t *testing.T) {
	rec := &recorder{}
	m := NewMachine(entity.Nil, WithSignals(rec))
	def := timed("a", KindBasic, 100*ms, 200*ms, 300*ms, 400*ms)
	host := newHost()

	require.True(t, m.Start(def, 0, host, Env{}))
	m.Advance(450*ms, 450*ms, host, Env{})
	require.Equal(t, PhaseStoppage, m.Phase())
	assert.Equal(t, 300*ms, m.Active().PhaseAt)
	assert.Equal(t, 150*ms, m.Active().Elapsed)

	m.Advance(10*time.Second, 9550*ms, host, Env{})
	assert.Equal(t, PhaseIdle, m.Phase())

	at := map[string]time.Duration{}
	for _, s := range rec.signals {
		at[s.Name] = s.At
	}
	assert.Equal(t, 100*ms, at[SignalCommitStarted])
	assert.Equal(t, 300*ms, at[SignalImpact])
	assert.Equal(t, 600*ms, at[SignalRecoveryStarted])
	assert.Equal(t, time.Second, at[SignalFinished])
}

func TestMachine_Abort(t *testing.T) {
	rec := &recorder{}
	m := NewMachine(entity.Nil, WithSignals(rec))
	def := timed("leap", KindSpecial, 100*ms, 100*ms, 100*ms, 100*ms)
	def.Cooldown = time.Minute
	host := newHost()

	require.True(t, m.Start(def, 0, host, Env{}))
	m.Advance(150*ms, 150*ms, host, Env{})
	require.Equal(t, PhaseCommit, m.Phase())

	m.Abort(150 * ms)
	assert.Nil(t, m.Active())
	assert.Equal(t, SignalAborted, rec.signals[len(rec.signals)-1].Name)
	assert.NotContains(t, rec.names(), SignalRecoveryStarted)
	assert.Equal(t, ReasonReady, m.Eligibility(def, 150*ms))

	m.Abort(200 * ms)
	assert.Equal(t, SignalAborted, rec.signals[len(rec.signals)-1].Name)
}

type dashFixture struct {
	world  *world.Memory
	host   *fakeHost
	target entity.Handle
	hits   int
	def    *Definition
}

func newDashFixture() *dashFixture {
	f := &dashFixture{world: world.NewMemory(4)}
	self := f.world.Spawn(world.Body{Faction: "beast", HP: 100, Radius: 0.5})
	f.target = f.world.Spawn(world.Body{Pose: world.Pose{Pos: geom.V(5, 0)}, Faction: "hero", HP: 100, Radius: 0.5})
	f.world.OnDamage(func(world.DamageEvent) { f.hits++ })
	f.host = newHost()
	f.host.self = self
	f.host.target = f.target
	f.host.hasTarget = true
	f.def = &Definition{
		ID:         "pounce",
		Kind:       KindSpecial,
		Windup:     100 * ms,
		Commit:     time.Second,
		Stoppage:   100 * ms,
		Recovery:   100 * ms,
		MaxRange:   10,
		LockFacing: true,
		Effect:     EffectSpec{Kind: EffectTraversal, Damage: 10, Speed: 10, HitRadius: 1},
	}
	return f
}

func (f *dashFixture) env() Env {
	return Env{Query: f.world, Damage: f.world}
}

func TestMachine_DashHitsEachTargetOnce(t *testing.T) {
	f := newDashFixture()
	m := NewMachine(f.host.self)

	require.True(t, m.Start(f.def, 0, f.host, f.env()))
	runToIdle(t, m, 0, 100*ms, f.host, f.env())

	body, ok := f.world.Body(f.target)
	require.True(t, ok)
	assert.Equal(t, 1, f.hits)
	assert.Equal(t, int32(90), body.HP)
	assert.InDelta(t, 10, f.host.pose.Pos.X, 1e-6)
}

func TestMachine_DashTargetRemovedMidCommit(t *testing.T) {
	f := newDashFixture()
	rec := &recorder{}
	m := NewMachine(f.host.self, WithSignals(rec))

	require.True(t, m.Start(f.def, 0, f.host, f.env()))
	now := time.Duration(0)
	for now < 300*ms {
		now += 100 * ms
		m.Advance(now, 100*ms, f.host, f.env())
	}
	require.Equal(t, PhaseCommit, m.Phase())
	require.Zero(t, f.hits)

	f.host.hasTarget = false
	runToIdle(t, m, now, 100*ms, f.host, f.env())

	assert.Zero(t, f.hits)
	body, _ := f.world.Body(f.target)
	assert.Equal(t, int32(100), body.HP)
	assert.Contains(t, rec.names(), SignalRecoveryStarted)
	assert.Equal(t, SignalFinished, rec.names()[len(rec.names())-1])
}

func TestMachine_DashTargetDespawned(t *testing.T) {
	f := newDashFixture()
	m := NewMachine(f.host.self)

	require.True(t, m.Start(f.def, 0, f.host, f.env()))
	m.Advance(200*ms, 200*ms, f.host, f.env())
	require.True(t, f.world.Despawn(f.target))

	runToIdle(t, m, 200*ms, 100*ms, f.host, f.env())
	assert.Zero(t, f.hits)
}

func TestMachine_StrikeCone(t *testing.T) {
	w := world.NewMemory(4)
	self := w.Spawn(world.Body{Faction: "beast", HP: 10})
	front := w.Spawn(world.Body{Pose: world.Pose{Pos: geom.V(2, 0)}, Faction: "hero", HP: 10})
	behind := w.Spawn(world.Body{Pose: world.Pose{Pos: geom.V(-2, 0)}, Faction: "hero", HP: 10})

	host := newHost()
	host.self = self
	def := timed("swipe", KindBasic, 0, 100*ms, 0, 0)
	def.Effect = EffectSpec{Kind: EffectStrike, Shape: geom.ShapeCone, Damage: 4, Radius: 3, Angle: 45}

	m := NewMachine(self)
	require.True(t, m.Start(def, 0, host, Env{Query: w, Damage: w}))
	assert.Equal(t, 1, m.Active().HitCount())

	b, _ := w.Body(front)
	assert.Equal(t, int32(6), b.HP)
	b, _ = w.Body(behind)
	assert.Equal(t, int32(10), b.HP)
}

func TestMachine_DelayedImpact(t *testing.T) {
	w := world.NewMemory(4)
	self := w.Spawn(world.Body{Faction: "beast", HP: 10})
	target := w.Spawn(world.Body{Pose: world.Pose{Pos: geom.V(6, 0)}, Faction: "hero", HP: 10})

	host := newHost()
	host.self = self
	host.target = target
	host.hasTarget = true

	def := timed("meteor", KindSpecial, 0, 500*ms, 0, 0)
	def.Effect = EffectSpec{Kind: EffectDelayed, Damage: 7, Radius: 1}
	env := Env{Query: w, Damage: w}

	t.Run("target stays", func(t *testing.T) {
		m := NewMachine(self)
		require.True(t, m.Start(def, 0, host, env))
		assert.Equal(t, geom.V(6, 0), m.Active().Marker)
		runToIdle(t, m, 0, 100*ms, host, env)
		b, _ := w.Body(target)
		assert.Equal(t, int32(3), b.HP)
	})

	t.Run("target walks out", func(t *testing.T) {
		b, _ := w.Body(target)
		b.HP = 10
		m := NewMachine(self)
		require.True(t, m.Start(def, 0, host, env))
		w.Place(target, world.Pose{Pos: geom.V(20, 0), Facing: geom.V(1, 0)})
		runToIdle(t, m, 0, 100*ms, host, env)
		b, _ = w.Body(target)
		assert.Equal(t, int32(10), b.HP)
	})
}

func TestMachine_LockFacingAimsAtTarget(t *testing.T) {
	w := world.NewMemory(4)
	self := w.Spawn(world.Body{Faction: "beast"})
	target := w.Spawn(world.Body{Pose: world.Pose{Pos: geom.V(0, 4)}, Faction: "hero", HP: 1})

	host := newHost()
	host.self = self
	host.target = target
	host.hasTarget = true

	def := timed("leap", KindSpecial, 200*ms, 100*ms, 0, 0)
	def.LockFacing = true
	m := NewMachine(self)

	require.True(t, m.Start(def, 0, host, Env{Query: w}))
	assert.InDelta(t, 1, m.Active().Direction.Y, 1e-9)
	assert.InDelta(t, 1, host.pose.Facing.Y, 1e-9)

	m.Advance(100*ms, 100*ms, host, Env{Query: w})
	assert.Zero(t, host.tracked)
}

func TestRegistry_Override(t *testing.T) {
	var begins, impacts int
	r := NewRegistry().Override("special", Funcs{
		Impact: func(c *Context) { impacts++ },
	})

	def := timed("special", KindSpecial, 0, 0, 0, 0)
	def.Effect.Kind = EffectStrike
	plain := timed("plain", KindBasic, 0, 0, 0, 0)
	plain.Effect.Kind = EffectTraversal

	assert.IsType(t, Traversal{}, r.Resolve(plain))
	assert.IsType(t, Strike{}, (*Registry)(nil).Resolve(def))

	m := NewMachine(entity.Nil, WithRegistry(r))
	r.Override("plain", Funcs{Begin: func(*Context) { begins++ }})
	require.True(t, m.Start(def, 0, newHost(), Env{}))
	require.True(t, m.Start(plain, 0, newHost(), Env{}))

	assert.Equal(t, 1, impacts)
	assert.Equal(t, 1, begins)
}
