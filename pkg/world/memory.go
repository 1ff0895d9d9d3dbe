package world

import (
	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
)

// Body 世界中的实体
type Body struct {
	Pose
	Radius  float64
	Faction string
	HP      int32
	MaxHP   int32
	Dead    bool
}

// DamageEvent 伤害结算结果
type DamageEvent struct {
	Target entity.Handle
	Amount int32
	HP     int32
	Killed bool
}

var (
	_ Query      = (*Memory)(nil)
	_ DamageSink = (*Memory)(nil)
	_ Placer     = (*Memory)(nil)
)

// Memory 内存世界，单个 zone 独占，不做并发保护
type Memory struct {
	bodies   *entity.Arena[Body]
	onDamage func(DamageEvent)
}

// NewMemory 创建内存世界
func NewMemory(capacity int) *Memory {
	return &Memory{
		bodies: entity.NewArena[Body](capacity),
	}
}

// OnDamage 注册伤害回调
func (w *Memory) OnDamage(fn func(DamageEvent)) {
	w.onDamage = fn
}

// Spawn 加入实体
func (w *Memory) Spawn(b Body) entity.Handle {
	if b.MaxHP == 0 {
		b.MaxHP = b.HP
	}
	if b.Facing.IsZero() {
		b.Facing = geom.V(1, 0)
	}
	return w.bodies.Insert(b)
}

// Despawn 移除实体，已有句柄随即失效
func (w *Memory) Despawn(h entity.Handle) bool {
	return w.bodies.Remove(h)
}

// Body 读取实体
func (w *Memory) Body(h entity.Handle) (*Body, bool) {
	return w.bodies.Get(h)
}

// Len 实体数量
func (w *Memory) Len() int {
	return w.bodies.Len()
}

// Each 按槽位顺序遍历
func (w *Memory) Each(fn func(h entity.Handle, b *Body) bool) {
	w.bodies.Each(fn)
}

// hostile 判断 other 对 from 是否为可攻击目标
func (w *Memory) hostile(from entity.Handle, fromFaction string, h entity.Handle, b *Body) bool {
	if h == from || b.Dead {
		return false
	}
	return fromFaction == "" || b.Faction != fromFaction
}

func (w *Memory) factionOf(h entity.Handle) string {
	if b, ok := w.bodies.Get(h); ok {
		return b.Faction
	}
	return ""
}

func (w *Memory) FindNearestCandidate(from entity.Handle, pos geom.Vec2, maxRadius float64) (entity.Handle, bool) {
	faction := w.factionOf(from)
	best, bestDist := entity.Nil, maxRadius
	found := false

	w.bodies.Each(func(h entity.Handle, b *Body) bool {
		if !w.hostile(from, faction, h, b) {
			return true
		}
		d := b.Pos.Dist(pos)
		if d < bestDist || (!found && d <= bestDist) {
			best, bestDist, found = h, d, true
		}
		return true
	})
	return best, found
}

func (w *Memory) Overlap(from entity.Handle, shape geom.Shape) []entity.Handle {
	faction := w.factionOf(from)
	var hits []entity.Handle

	w.bodies.Each(func(h entity.Handle, b *Body) bool {
		if w.hostile(from, faction, h, b) && shape.Overlaps(b.Pos, b.Radius) {
			hits = append(hits, h)
		}
		return true
	})
	return hits
}

func (w *Memory) Resolve(h entity.Handle) (Pose, bool) {
	b, ok := w.bodies.Get(h)
	if !ok || b.Dead {
		return Pose{}, false
	}
	return b.Pose, true
}

func (w *Memory) ApplyDamage(target entity.Handle, amount int32) {
	b, ok := w.bodies.Get(target)
	if !ok || b.Dead || amount <= 0 {
		return
	}
	b.HP -= amount
	if b.HP <= 0 {
		b.HP = 0
		b.Dead = true
	}
	if w.onDamage != nil {
		w.onDamage(DamageEvent{Target: target, Amount: amount, HP: b.HP, Killed: b.Dead})
	}
}

func (w *Memory) Place(h entity.Handle, pose Pose) {
	if b, ok := w.bodies.Get(h); ok {
		b.Pose = pose
	}
}
