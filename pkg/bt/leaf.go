package bt

import "context"

// ActionFunc 动作回调
type ActionFunc func(ctx context.Context, bb *Blackboard) Status

// Action 动作叶子节点
// OnStart 在一次激活的第一次 Tick 前调用，OnStop 在返回非 Running 或被中断时调用
// 返回 Failure 时回调不应留下部分修改，Selector 会在同一帧继续尝试其他分支
type Action struct {
	BaseNode
	run     ActionFunc
	onStart func(bb *Blackboard)
	onStop  func(bb *Blackboard, status Status)
	active  bool
	bb      *Blackboard
}

// ActionOption 动作节点选项
type ActionOption func(*Action)

// WithOnStart 设置激活回调
func WithOnStart(fn func(bb *Blackboard)) ActionOption {
	return func(a *Action) { a.onStart = fn }
}

// WithOnStop 设置结束回调，被中断时 status 为 StatusInvalid
func WithOnStop(fn func(bb *Blackboard, status Status)) ActionOption {
	return func(a *Action) { a.onStop = fn }
}

// NewAction 创建动作节点
func NewAction(name string, run ActionFunc, opts ...ActionOption) *Action {
	a := &Action{
		BaseNode: BaseNode{name: name},
		run:      run,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Action) Tick(ctx context.Context, bb *Blackboard) Status {
	if !a.active {
		a.active = true
		a.bb = bb
		if a.onStart != nil {
			a.onStart(bb)
		}
	}

	status := a.run(ctx, bb)
	if status != StatusRunning {
		a.finish(status)
	}
	return status
}

func (a *Action) finish(status Status) {
	bb := a.bb
	a.active = false
	a.bb = nil
	if a.onStop != nil {
		a.onStop(bb, status)
	}
}

func (a *Action) Reset() {
	if a.active {
		a.finish(StatusInvalid)
	}
}

// Condition 条件叶子节点
type Condition struct {
	BaseNode
	predicate func(bb *Blackboard) bool
}

// NewCondition 创建条件节点
func NewCondition(name string, predicate func(bb *Blackboard) bool) *Condition {
	return &Condition{
		BaseNode:  BaseNode{name: name},
		predicate: predicate,
	}
}

func (c *Condition) Tick(_ context.Context, bb *Blackboard) Status {
	if c.predicate(bb) {
		return StatusSuccess
	}
	return StatusFailure
}
