package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-combat/pkg/ability"
	"github.com/lk2023060901/xdooria-combat/pkg/bt"
	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
	"github.com/lk2023060901/xdooria-combat/pkg/world"
)

const (
	ms   = time.Millisecond
	tick = 100 * ms
)

func wolf() *Archetype {
	bite := &ability.Definition{
		ID:              "bite",
		Kind:            ability.KindBasic,
		Cooldown:        500 * ms,
		Windup:          100 * ms,
		Commit:          100 * ms,
		Stoppage:        100 * ms,
		Recovery:        200 * ms,
		MaxRange:        1.5,
		Weight:          1,
		FacingTolerance: 45,
		Effect:          ability.EffectSpec{Kind: ability.EffectStrike, Shape: geom.ShapeSphere, Damage: 5, Radius: 1.5},
	}
	pounce := &ability.Definition{
		ID:              "pounce",
		Kind:            ability.KindSpecial,
		Cooldown:        time.Second,
		Windup:          200 * ms,
		Commit:          400 * ms,
		Stoppage:        400 * ms,
		Recovery:        time.Second,
		MinRange:        3,
		MaxRange:        8,
		Weight:          0.8,
		FacingTolerance: 30,
		LockFacing:      true,
		Effect:          ability.EffectSpec{Kind: ability.EffectTraversal, Damage: 12, Speed: 12, HitRadius: 1},
	}
	return &Archetype{
		ID:               "wolf",
		Faction:          "beast",
		MaxHP:            50,
		Radius:           0.5,
		Speed:            4,
		PerceptionRadius: 10,
		LoseRadius:       14,
		ScanInterval:     200 * ms,
		PatrolRadius:     3,
		BasicID:          "bite",
		SpecialIDs:       []string{"pounce"},
		Basic:            bite,
		Specials:         []*ability.Definition{pounce},
	}
}

type recorder struct {
	signals []ability.Signal
}

func (r *recorder) Emit(s ability.Signal) {
	r.signals = append(r.signals, s)
}

func (r *recorder) find(name string) []ability.Signal {
	var out []ability.Signal
	for _, s := range r.signals {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

type fixture struct {
	world *world.Memory
	auth  *world.OwnerTable
	agent *Agent
	rec   *recorder
	now   time.Duration
}

func newFixture(t *testing.T, arch *Archetype, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		world: world.NewMemory(16),
		auth:  world.NewOwnerTable(true),
		rec:   &recorder{},
	}
	pose := world.Pose{Facing: geom.V(1, 0)}
	self := f.world.Spawn(world.Body{Pose: pose, Radius: arch.Radius, Faction: arch.Faction, HP: arch.MaxHP})
	opts = append([]Option{WithSignals(f.rec), WithSeed(7)}, opts...)
	f.agent = New(arch, self, pose, opts...)
	return f
}

func (f *fixture) enemy(x, y float64, hp int32) entity.Handle {
	return f.world.Spawn(world.Body{
		Pose:    world.Pose{Pos: geom.V(x, y)},
		Radius:  0.5,
		Faction: "hero",
		HP:      hp,
	})
}

func (f *fixture) env() Env {
	return Env{Query: f.world, Damage: f.world, Placer: f.world, Authority: f.auth}
}

func (f *fixture) step(n int) {
	for range n {
		f.now += tick
		f.agent.Tick(context.Background(), f.now, tick, f.env())
	}
}

func TestAgent_PatrolsNearHome(t *testing.T) {
	f := newFixture(t, wolf())
	f.step(50)

	assert.Equal(t, StatePatrol, f.agent.State())
	pose := f.agent.Pose()
	assert.LessOrEqual(t, pose.Pos.Len(), 3+arriveEpsilon)

	body, ok := f.world.Body(f.agent.Handle())
	require.True(t, ok)
	assert.Equal(t, pose, body.Pose)
}

func TestAgent_ChaseThenSpecial(t *testing.T) {
	var selected []string
	f := newFixture(t, wolf(), WithArbitrationHook(func(_, id string) {
		selected = append(selected, id)
	}))
	f.enemy(9.5, 0, 1000)

	f.step(1)
	assert.Equal(t, StateChase, f.agent.State())
	assert.InDelta(t, 0.4, f.agent.Pose().Pos.X, 1e-9)
	_, ok := f.agent.Blackboard().PeekTarget()
	assert.True(t, ok)

	for i := 0; f.agent.State() != Special(0); i++ {
		require.Less(t, i, 30, "pounce never selected")
		f.step(1)
	}
	assert.True(t, f.agent.Busy())
	assert.Equal(t, ability.PhaseWindup, f.agent.Machine().Phase())
	assert.Contains(t, selected, "pounce")
	assert.Equal(t, "", selected[0])

	dist := 9.5 - f.agent.Pose().Pos.X
	assert.GreaterOrEqual(t, dist, 3.0)
	assert.LessOrEqual(t, dist, 8.0)

	v := f.agent.View()
	assert.Equal(t, "special1", v.State)
	assert.Equal(t, "windup", v.Phase)
	assert.Equal(t, "pounce", v.Ability)
	assert.Zero(t, v.SpeedMult)
}

func TestAgent_BusySuspendsTree(t *testing.T) {
	f := newFixture(t, wolf())
	f.enemy(6, 0, 1000)

	f.step(1)
	require.Equal(t, Special(0), f.agent.State())
	require.True(t, f.agent.Busy())

	before := f.agent.Pose()
	f.step(1)
	assert.Equal(t, before, f.agent.Pose(), "agent moved during windup")
	assert.Equal(t, Special(0), f.agent.State())

	// Commit 期间只有冲刺位移
	f.step(2)
	assert.Equal(t, ability.PhaseCommit, f.agent.Machine().Phase())
	assert.Greater(t, f.agent.Pose().Pos.X, before.Pos.X)

	for f.agent.Machine().Busy() {
		f.step(1)
	}
	assert.Equal(t, ability.PhaseRecovery, f.agent.Machine().Phase())
	assert.False(t, f.agent.Busy())
}

func TestAgent_BasicAttack(t *testing.T) {
	f := newFixture(t, wolf())
	enemy := f.enemy(1, 0, 100)

	f.step(1)
	assert.Equal(t, StateBasicAttack, f.agent.State())
	assert.Equal(t, ability.PhaseWindup, f.agent.Machine().Phase())

	f.step(2)
	body, _ := f.world.Body(enemy)
	assert.Equal(t, int32(95), body.HP)
}

func TestAgent_BasicAttackTurnsFirst(t *testing.T) {
	arch := wolf()
	arch.TurnRate = 180
	f := newFixture(t, arch)
	f.agent.SetPose(world.Pose{Facing: geom.V(-1, 0)})
	f.enemy(1, 0, 100)

	f.step(1)
	assert.Equal(t, StateBasicAttack, f.agent.State())
	assert.Nil(t, f.agent.Machine().Active())
	assert.InDelta(t, 162, geom.AngleBetween(f.agent.Pose().Facing, geom.V(1, 0)), 1e-6)

	f.step(8)
	require.NotNil(t, f.agent.Machine().Active())
	assert.Equal(t, "bite", f.agent.Machine().Active().Def.ID)
}

func TestAgent_BasicAttackTargetLeavesRangeWhileTurning(t *testing.T) {
	arch := wolf()
	arch.TurnRate = 180
	arch.Specials = nil
	arch.SpecialIDs = nil
	f := newFixture(t, arch)
	f.agent.SetPose(world.Pose{Facing: geom.V(-1, 0)})
	enemy := f.enemy(1, 0, 100)

	f.step(1)
	require.Equal(t, StateBasicAttack, f.agent.State())
	require.Nil(t, f.agent.Machine().Active())

	f.world.Place(enemy, world.Pose{Pos: geom.V(4, 0)})
	f.step(1)
	assert.Nil(t, f.agent.Machine().Active())
	assert.Equal(t, StateChase, f.agent.State())
	assert.Empty(t, f.rec.find(ability.SignalWindupStarted))

	for range 20 {
		f.step(1)
		if act := f.agent.Machine().Active(); act != nil {
			self, _ := f.world.Body(f.agent.Handle())
			target, _ := f.world.Body(enemy)
			assert.LessOrEqual(t, self.Pose.Pos.Dist(target.Pose.Pos), arch.Basic.MaxRange)
		}
	}
}

func TestAgent_NonAuthorityDoesNothing(t *testing.T) {
	f := newFixture(t, wolf())
	f.enemy(5, 0, 100)
	f.auth.SetAll(false)

	before := f.agent.Pose()
	ok := f.agent.Tick(context.Background(), tick, tick, f.env())
	assert.False(t, ok)
	assert.Equal(t, before, f.agent.Pose())
	assert.False(t, f.agent.Blackboard().Has(bt.KeyTarget))
	assert.Empty(t, f.rec.signals)

	f.auth.Set(f.agent.Handle(), true)
	assert.True(t, f.agent.Tick(context.Background(), 2*tick, tick, f.env()))
}

func TestAgent_TargetDespawned(t *testing.T) {
	f := newFixture(t, wolf())
	enemy := f.enemy(9, 0, 100)

	f.step(1)
	h, ok := f.agent.Blackboard().PeekTarget()
	require.True(t, ok)
	require.Equal(t, enemy, h)

	require.True(t, f.world.Despawn(enemy))
	f.step(1)
	assert.False(t, f.agent.Blackboard().Has(bt.KeyTarget))
	assert.False(t, f.agent.Blackboard().Has(bt.KeyTargetDist))
}

func TestAgent_LosesTargetBeyondLoseRadius(t *testing.T) {
	f := newFixture(t, wolf())
	enemy := f.enemy(9.9, 0, 100)
	f.agent.Hold(time.Hour)

	f.step(1)
	_, ok := f.agent.Blackboard().PeekTarget()
	require.True(t, ok)

	f.world.Place(enemy, world.Pose{Pos: geom.V(13, 0)})
	f.step(1)
	_, ok = f.agent.Blackboard().PeekTarget()
	assert.True(t, ok, "target inside lose radius is kept")

	f.world.Place(enemy, world.Pose{Pos: geom.V(14.5, 0)})
	f.step(1)
	_, ok = f.agent.Blackboard().PeekTarget()
	assert.False(t, ok)
}

func TestAgent_SpawnDelay(t *testing.T) {
	arch := wolf()
	arch.SpawnDelay = 300 * ms
	f := newFixture(t, arch)
	f.enemy(9.5, 0, 100)

	f.step(2)
	assert.True(t, f.agent.Busy())
	assert.Zero(t, f.agent.Pose().Pos.X)
	assert.Equal(t, StateIdle, f.agent.State())

	f.step(1)
	assert.Equal(t, StateChase, f.agent.State())
	assert.InDelta(t, 0.4, f.agent.Pose().Pos.X, 1e-9)
}

func TestAgent_Destroy(t *testing.T) {
	f := newFixture(t, wolf())
	f.enemy(1, 0, 100)
	f.step(1)
	require.NotNil(t, f.agent.Machine().Active())

	f.agent.Destroy(f.now)
	assert.True(t, f.agent.Destroyed())
	assert.Nil(t, f.agent.Machine().Active())
	assert.Len(t, f.rec.find(ability.SignalAborted), 1)
	assert.Empty(t, f.rec.find(ability.SignalRecoveryStarted))
	assert.False(t, f.agent.Tick(context.Background(), f.now+tick, tick, f.env()))

	f.agent.Destroy(f.now)
	assert.Len(t, f.rec.find(ability.SignalAborted), 1)
}

func TestAgent_StateChangedSignals(t *testing.T) {
	f := newFixture(t, wolf())
	f.enemy(9.5, 0, 100)
	f.step(1)

	changes := f.rec.find(SignalStateChanged)
	require.NotEmpty(t, changes)
	assert.Equal(t, "chase", changes[0].Detail)
	assert.Equal(t, f.agent.Handle(), changes[0].Agent)
	assert.Equal(t, tick, changes[0].At)
}

func TestAgent_GlobalLockoutAcrossSpecials(t *testing.T) {
	arch := wolf()
	roar := *arch.Specials[0]
	roar.ID = "roar"
	roar.Kind = ability.KindSpecial
	roar.Effect = ability.EffectSpec{Kind: ability.EffectStrike, Radius: 2}
	roar.MinRange, roar.MaxRange = 0, 2
	roar.Weight = 1
	roar.LockFacing = false
	arch.Specials = append(arch.Specials, &roar)
	arch.SpecialIDs = append(arch.SpecialIDs, "roar")

	f := newFixture(t, arch)
	f.enemy(5, 0, 1_000_000)
	f.step(300)

	var lastSpecialEnd time.Duration = -1
	specials := map[string]bool{"pounce": true, "roar": true}

	// 按时间顺序重放信号，检查每次特殊技能开始距上一次特殊技能结束不少于 4s
	count := 0
	for _, s := range f.rec.signals {
		if !specials[s.Ability] {
			continue
		}
		switch s.Name {
		case ability.SignalWindupStarted:
			count++
			if lastSpecialEnd >= 0 {
				assert.GreaterOrEqual(t, s.At-lastSpecialEnd, ability.DefaultLockout, "special %s at %v", s.Ability, s.At)
			}
		case ability.SignalFinished:
			lastSpecialEnd = s.At
		}
	}
	assert.Greater(t, count, 1)
}

func TestAgent_Evaluate(t *testing.T) {
	f := newFixture(t, wolf())
	scores := f.agent.Evaluate(0, 5.5, 0)
	require.Len(t, scores, 1)
	assert.Equal(t, "pounce", scores[0].ID)
	assert.InDelta(t, 0.8, scores[0].Value, 1e-9)

	scores = f.agent.Evaluate(0, 5.5, 90)
	assert.Zero(t, scores[0].Value)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "basic_attack", StateBasicAttack.String())
	assert.Equal(t, "special1", Special(0).String())
	assert.Equal(t, "special3", Special(2).String())
}
