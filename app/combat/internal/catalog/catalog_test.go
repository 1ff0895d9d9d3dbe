package catalog

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-combat/pkg/ability"
	"github.com/lk2023060901/xdooria-combat/pkg/gameconfig"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

func memLoader(tables map[string][]map[string]any) gameconfig.JsonLoader {
	return func(name string) ([]map[string]any, error) {
		return tables[name], nil
	}
}

func bite() map[string]any {
	return map[string]any{
		"id": "bite", "kind": "basic", "windup": "100ms", "max_range": 1.5, "weight": 1,
		"effect": map[string]any{"kind": "strike", "shape": "sphere", "damage": 5, "radius": 1.5},
	}
}

func pounce() map[string]any {
	return map[string]any{
		"id": "pounce", "kind": "special", "cooldown": "3s", "min_range": 3, "max_range": 8, "weight": 0.8,
		"effect": map[string]any{"kind": "traversal", "damage": 10, "speed": 12, "hit_radius": 1},
	}
}

func wolf() map[string]any {
	return map[string]any{
		"id": "wolf", "faction": "wilds", "max_hp": 50, "speed": 4, "perception_radius": 10,
		"basic": "bite", "specials": []any{"pounce"},
	}
}

func TestLoadShippedData(t *testing.T) {
	c, err := Load(gameconfig.NewFileJsonLoader(filepath.Join("..", "..", "cmd", "data"), logger.NewNoop()))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, c.Archetypes.Len(), 15)
	for _, arch := range c.Archetypes.Rows {
		require.NotNil(t, arch.Basic, arch.ID)
		assert.Equal(t, ability.KindBasic, arch.Basic.Kind, arch.ID)
		assert.Len(t, arch.Specials, len(arch.SpecialIDs), arch.ID)
		for _, s := range arch.Specials {
			assert.True(t, s.Special(), "%s/%s", arch.ID, s.ID)
		}
	}

	wolf, err := c.Archetype("wolf")
	require.NoError(t, err)
	assert.Equal(t, "bite", wolf.Basic.ID)
	assert.Equal(t, 250*time.Millisecond, wolf.ScanInterval)

	_, err = c.Archetype("dragon_king")
	assert.ErrorIs(t, err, ErrUnknownArchetype)
}

func TestLoadResolvesReferences(t *testing.T) {
	c, err := Load(memLoader(map[string][]map[string]any{
		TableAbilities:  {bite(), pounce()},
		TableArchetypes: {wolf()},
	}))
	require.NoError(t, err)

	arch, err := c.Archetype("wolf")
	require.NoError(t, err)
	assert.Same(t, c.Abilities.Rows[0], arch.Basic)
	require.Len(t, arch.Specials, 1)
	assert.Equal(t, 3*time.Second, arch.Specials[0].Cooldown)
	assert.Equal(t, []string{"wolf"}, c.ArchetypeIDs())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(abilities []map[string]any, arch map[string]any)
		wantErr error
	}{
		{
			name:    "unknown basic",
			mutate:  func(_ []map[string]any, arch map[string]any) { arch["basic"] = "claw" },
			wantErr: ErrUnknownAbility,
		},
		{
			name:    "unknown special",
			mutate:  func(_ []map[string]any, arch map[string]any) { arch["specials"] = []any{"pounce", "roar"} },
			wantErr: ErrUnknownAbility,
		},
		{
			name:    "special used as basic",
			mutate:  func(_ []map[string]any, arch map[string]any) { arch["basic"] = "pounce" },
			wantErr: ErrAbilityKind,
		},
		{
			name:    "basic listed as special",
			mutate:  func(_ []map[string]any, arch map[string]any) { arch["specials"] = []any{"bite"} },
			wantErr: ErrAbilityKind,
		},
		{
			name: "traversal without speed",
			mutate: func(abilities []map[string]any, _ map[string]any) {
				abilities[1]["effect"] = map[string]any{"kind": "traversal", "damage": 1}
			},
			wantErr: ErrInvalidEffect,
		},
		{
			name: "duplicate ability id",
			mutate: func(abilities []map[string]any, _ map[string]any) {
				abilities[1]["id"] = "bite"
			},
			wantErr: gameconfig.ErrDuplicateKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abilities := []map[string]any{bite(), pounce()}
			arch := wolf()
			tt.mutate(abilities, arch)

			_, err := Load(memLoader(map[string][]map[string]any{
				TableAbilities:  abilities,
				TableArchetypes: {arch},
			}))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		patch map[string]any
	}{
		{"negative windup", map[string]any{"windup": "-1s"}},
		{"min above max", map[string]any{"min_range": 5, "max_range": 2}},
		{"weight above one", map[string]any{"weight": 1.5}},
		{"tolerance above 180", map[string]any{"facing_tolerance": 200}},
		{"bad kind", map[string]any{"kind": "ultimate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bite()
			for k, v := range tt.patch {
				b[k] = v
			}
			_, err := Load(memLoader(map[string][]map[string]any{
				TableAbilities:  {b, pounce()},
				TableArchetypes: {wolf()},
			}))
			assert.Error(t, err)
		})
	}

	_, err := Load(memLoader(map[string][]map[string]any{TableAbilities: {bite()}}))
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func writeTables(t *testing.T, dir string, specials string) {
	t.Helper()
	abilities := `[
  {"id": "bite", "kind": "basic", "max_range": 1.5, "weight": 1, "effect": {"kind": "strike", "shape": "sphere", "damage": 5, "radius": 1.5}},
  {"id": "pounce", "kind": "special", "min_range": 3, "max_range": 8, "weight": 0.8, "effect": {"kind": "traversal", "damage": 10, "speed": 12, "hit_radius": 1}}
]`
	archetypes := `[{"id": "wolf", "faction": "wilds", "max_hp": 50, "speed": 4, "perception_radius": 10, "basic": "bite", "specials": ` + specials + `}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abilities.json"), []byte(abilities), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "archetypes.json"), []byte(archetypes), 0o644))
}

func TestStoreReload(t *testing.T) {
	dir := t.TempDir()
	writeTables(t, dir, `[]`)

	s, err := NewStore(&Config{DataDir: dir}, logger.NewNoop())
	require.NoError(t, err)
	first := s.Current()
	wolf, _ := first.Archetype("wolf")
	assert.Empty(t, wolf.Specials)

	var reloaded atomic.Int32
	s.OnReload(func(*Catalog) { reloaded.Add(1) })

	writeTables(t, dir, `["pounce"]`)
	require.NoError(t, s.Reload())
	assert.EqualValues(t, 1, reloaded.Load())

	wolf2, _ := s.Current().Archetype("wolf")
	assert.Len(t, wolf2.Specials, 1)
	// 旧表不受影响
	assert.Empty(t, wolf.Specials)

	writeTables(t, dir, `["roar"]`)
	assert.Error(t, s.Reload())
	assert.Same(t, wolf2, must(s.Current().Archetype("wolf")))
	assert.Same(t, wolf2, must(s.Archetype("wolf")))
}

func TestStoreHotReload(t *testing.T) {
	dir := t.TempDir()
	writeTables(t, dir, `[]`)

	s, err := NewStore(&Config{DataDir: dir, HotReload: true, Debounce: 20 * time.Millisecond}, logger.NewNoop())
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer s.Stop()

	writeTables(t, dir, `["pounce"]`)
	require.Eventually(t, func() bool {
		wolf, err := s.Current().Archetype("wolf")
		return err == nil && len(wolf.Specials) == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestStoreStartReportsWatchError(t *testing.T) {
	dir := t.TempDir()
	writeTables(t, dir, `[]`)

	s, err := NewStore(&Config{DataDir: dir, HotReload: true}, logger.NewNoop())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	assert.Error(t, s.Start())
	assert.NoError(t, s.Stop())
}

func TestNewStoreFailsOnBadData(t *testing.T) {
	dir := t.TempDir()
	writeTables(t, dir, `["roar"]`)
	_, err := NewStore(&Config{DataDir: dir}, logger.NewNoop())
	assert.ErrorIs(t, err, ErrUnknownAbility)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
