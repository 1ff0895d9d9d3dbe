package world

import (
	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
)

// Pose 位置与朝向
type Pose struct {
	Pos    geom.Vec2 `json:"pos" codec:"pos"`
	Facing geom.Vec2 `json:"facing" codec:"facing"`
}

// Query 世界查询，结果可以为空
type Query interface {
	// FindNearestCandidate 查找 pos 周围 maxRadius 内离 from 最近的敌对实体
	FindNearestCandidate(from entity.Handle, pos geom.Vec2, maxRadius float64) (entity.Handle, bool)
	// Overlap 返回与形状相交的敌对实体，按实体槽位顺序
	Overlap(from entity.Handle, shape geom.Shape) []entity.Handle
	// Resolve 解析存活实体的位姿，句柄失效或实体死亡时返回 false
	Resolve(h entity.Handle) (Pose, bool)
}

// DamageSink 伤害接收方，调用方不关心结果
type DamageSink interface {
	ApplyDamage(target entity.Handle, amount int32)
}

// Placer 写回实体位姿
type Placer interface {
	Place(h entity.Handle, pose Pose)
}

// Authority 权威判定，每个 Agent 每帧在任何修改前检查一次
type Authority interface {
	IsAuthority(h entity.Handle) bool
}

// AuthorityFunc 函数式 Authority
type AuthorityFunc func(h entity.Handle) bool

func (f AuthorityFunc) IsAuthority(h entity.Handle) bool {
	return f(h)
}
