// Package catalog 技能表与敌人类型表
//
// 表文件位于数据目录（abilities.json、archetypes.json），加载时解析 Archetype
// 引用的技能并做跨表校验。已生成的 Agent 持有旧表的指针，热更新只影响之后的生成。
package catalog

import (
	"slices"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/xdooria-combat/pkg/ability"
	"github.com/lk2023060901/xdooria-combat/pkg/agent"
	"github.com/lk2023060901/xdooria-combat/pkg/gameconfig"
)

const (
	TableAbilities  = "abilities"
	TableArchetypes = "archetypes"
)

var (
	ErrUnknownAbility   = errors.New("catalog: unknown ability")
	ErrAbilityKind      = errors.New("catalog: ability kind mismatch")
	ErrInvalidEffect    = errors.New("catalog: invalid effect")
	ErrEmptyCatalog     = errors.New("catalog: no archetypes")
	ErrUnknownArchetype = errors.New("catalog: unknown archetype")
)

// Catalog 一次加载得到的只读表
type Catalog struct {
	Abilities  *gameconfig.Table[ability.Definition]
	Archetypes *gameconfig.Table[agent.Archetype]
	LoadedAt   time.Time
}

// Load 加载两张表并解析引用
func Load(load gameconfig.JsonLoader) (*Catalog, error) {
	abilities, err := gameconfig.LoadTable(load, TableAbilities, func(d *ability.Definition) string { return d.ID })
	if err != nil {
		return nil, err
	}
	for _, def := range abilities.Rows {
		if err := validateEffect(def); err != nil {
			return nil, errors.Wrapf(err, "ability %q", def.ID)
		}
	}

	archetypes, err := gameconfig.LoadTable(load, TableArchetypes, func(a *agent.Archetype) string { return a.ID })
	if err != nil {
		return nil, err
	}
	if archetypes.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	for _, arch := range archetypes.Rows {
		if err := resolve(arch, abilities); err != nil {
			return nil, errors.Wrapf(err, "archetype %q", arch.ID)
		}
	}

	return &Catalog{
		Abilities:  abilities,
		Archetypes: archetypes,
		LoadedAt:   time.Now(),
	}, nil
}

// Archetype 按 ID 查找敌人类型
func (c *Catalog) Archetype(id string) (*agent.Archetype, error) {
	arch, ok := c.Archetypes.Get(id)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownArchetype, "%q", id)
	}
	return arch, nil
}

// ArchetypeIDs 按声明顺序返回全部类型 ID
func (c *Catalog) ArchetypeIDs() []string {
	ids := make([]string, 0, c.Archetypes.Len())
	for _, a := range c.Archetypes.Rows {
		ids = append(ids, a.ID)
	}
	return ids
}

// resolve 每个 Archetype 恰好一个普通攻击，特殊技能不重复
func resolve(arch *agent.Archetype, abilities *gameconfig.Table[ability.Definition]) error {
	basic, ok := abilities.Get(arch.BasicID)
	if !ok {
		return errors.Wrapf(ErrUnknownAbility, "basic %q", arch.BasicID)
	}
	if basic.Kind != ability.KindBasic {
		return errors.Wrapf(ErrAbilityKind, "basic %q is %s", basic.ID, basic.Kind)
	}

	specials := make([]*ability.Definition, 0, len(arch.SpecialIDs))
	for i, id := range arch.SpecialIDs {
		def, ok := abilities.Get(id)
		if !ok {
			return errors.Wrapf(ErrUnknownAbility, "special %q", id)
		}
		if def.Kind != ability.KindSpecial {
			return errors.Wrapf(ErrAbilityKind, "special %q is %s", id, def.Kind)
		}
		if slices.Contains(arch.SpecialIDs[:i], id) {
			return errors.Newf("catalog: special %q listed twice", id)
		}
		specials = append(specials, def)
	}

	arch.Basic = basic
	arch.Specials = specials
	return nil
}

func validateEffect(def *ability.Definition) error {
	e := def.Effect
	switch e.Kind {
	case ability.EffectTraversal:
		if e.Speed <= 0 {
			return errors.Wrap(ErrInvalidEffect, "traversal requires speed > 0")
		}
	case ability.EffectStrike, ability.EffectDelayed:
		if e.Shape == "" || e.Radius <= 0 {
			return errors.Wrapf(ErrInvalidEffect, "%s requires shape and radius > 0", e.Kind)
		}
	}
	return nil
}
