package world

import (
	"testing"

	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnAt(w *Memory, x, y float64, faction string) entity.Handle {
	return w.Spawn(Body{Pose: Pose{Pos: geom.V(x, y)}, Radius: 0.5, Faction: faction, HP: 10})
}

func TestFindNearestCandidate(t *testing.T) {
	w := NewMemory(8)
	self := spawnAt(w, 0, 0, "wolves")
	spawnAt(w, 1, 0, "wolves")
	far := spawnAt(w, 6, 0, "players")
	near := spawnAt(w, 3, 0, "players")

	got, ok := w.FindNearestCandidate(self, geom.V(0, 0), 10)
	require.True(t, ok)
	assert.Equal(t, near, got)

	_, ok = w.FindNearestCandidate(self, geom.V(0, 0), 2)
	assert.False(t, ok)

	w.Despawn(near)
	got, ok = w.FindNearestCandidate(self, geom.V(0, 0), 10)
	require.True(t, ok)
	assert.Equal(t, far, got)
}

func TestOverlapSkipsFriendsAndDead(t *testing.T) {
	w := NewMemory(8)
	self := spawnAt(w, 0, 0, "a")
	spawnAt(w, 1, 0, "a")
	enemy := spawnAt(w, 1, 1, "b")
	dead := spawnAt(w, 0, 1, "b")
	w.ApplyDamage(dead, 100)

	hits := w.Overlap(self, geom.Sphere(geom.V(0, 0), 2))
	assert.Equal(t, []entity.Handle{enemy}, hits)
}

func TestApplyDamage(t *testing.T) {
	w := NewMemory(4)
	h := spawnAt(w, 0, 0, "a")

	var events []DamageEvent
	w.OnDamage(func(e DamageEvent) { events = append(events, e) })

	w.ApplyDamage(h, 4)
	w.ApplyDamage(h, 0)
	w.ApplyDamage(h, 8)
	w.ApplyDamage(h, 8)

	require.Len(t, events, 2)
	assert.Equal(t, int32(6), events[0].HP)
	assert.True(t, events[1].Killed)

	_, ok := w.Resolve(h)
	assert.False(t, ok)
}

func TestResolveAndPlace(t *testing.T) {
	w := NewMemory(4)
	h := spawnAt(w, 0, 0, "a")

	w.Place(h, Pose{Pos: geom.V(2, 3), Facing: geom.V(0, 1)})
	p, ok := w.Resolve(h)
	require.True(t, ok)
	assert.Equal(t, geom.V(2, 3), p.Pos)

	w.Despawn(h)
	_, ok = w.Resolve(h)
	assert.False(t, ok)
}

func TestOwnerTable(t *testing.T) {
	tbl := NewOwnerTable(true)
	h := entity.Handle{Index: 1, Gen: 1}
	assert.True(t, tbl.IsAuthority(h))

	tbl.Set(h, false)
	assert.False(t, tbl.IsAuthority(h))

	tbl.Forget(h)
	tbl.SetAll(false)
	assert.False(t, tbl.IsAuthority(h))
	assert.False(t, tbl.Owned())
}
