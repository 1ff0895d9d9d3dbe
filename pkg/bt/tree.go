package bt

import (
	"context"

	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

// Tree 行为树，由所属 Agent 每帧驱动一次
type Tree struct {
	root       Node
	blackboard *Blackboard
	logger     logger.Logger
	last       Status
}

// NewTree 创建行为树
func NewTree(root Node, bb *Blackboard, l logger.Logger) *Tree {
	if bb == nil {
		bb = NewBlackboard()
	}
	if l == nil {
		l = logger.NewNoop()
	}
	return &Tree{
		root:       root,
		blackboard: bb,
		logger:     l.Named("bt"),
	}
}

// Tick 执行一次行为树
func (t *Tree) Tick(ctx context.Context) Status {
	status := t.root.Tick(ctx, t.blackboard)

	if status != t.last {
		t.logger.Debug("tree status changed",
			"root", t.root.Name(),
			"from", t.last.String(),
			"to", status.String(),
		)
		t.last = status
	}

	return status
}

// GetBlackboard 获取黑板
func (t *Tree) GetBlackboard() *Blackboard {
	return t.blackboard
}

// Root 根节点
func (t *Tree) Root() Node {
	return t.root
}

// Reset 中断正在运行的分支
func (t *Tree) Reset() {
	t.root.Reset()
	t.last = StatusInvalid
}
