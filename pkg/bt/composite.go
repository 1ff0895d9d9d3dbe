package bt

import "context"

// Sequence 顺序节点：按顺序执行子节点，全部成功才成功
// Running 时记住当前子节点，下次从该子节点继续
type Sequence struct {
	BaseNode
	children []Node
	current  int
	active   bool
}

// NewSequence 创建顺序节点
func NewSequence(name string, children ...Node) *Sequence {
	return &Sequence{
		BaseNode: BaseNode{name: name},
		children: children,
	}
}

func (s *Sequence) Tick(ctx context.Context, bb *Blackboard) Status {
	if !s.active {
		s.active = true
		s.current = 0
	}

	for s.current < len(s.children) {
		status := s.children[s.current].Tick(ctx, bb)

		switch status {
		case StatusSuccess:
			s.current++
			continue
		case StatusRunning:
			return StatusRunning
		default:
			s.stop()
			return StatusFailure
		}
	}

	s.stop()
	return StatusSuccess
}

// stop 结束本次激活，清空游标
func (s *Sequence) stop() {
	s.active = false
	s.current = 0
}

func (s *Sequence) Reset() {
	if s.active && s.current < len(s.children) {
		s.children[s.current].Reset()
	}
	s.stop()
}

// Selector 选择节点：按优先级执行子节点，有一个成功或运行中就返回
// 每次 Tick 都从第一个子节点开始评估，高优先级分支可以抢占低优先级的 Running 分支
type Selector struct {
	BaseNode
	children []Node
	running  int
}

// NewSelector 创建选择节点
func NewSelector(name string, children ...Node) *Selector {
	return &Selector{
		BaseNode: BaseNode{name: name},
		children: children,
		running:  -1,
	}
}

func (s *Selector) Tick(ctx context.Context, bb *Blackboard) Status {
	for i, child := range s.children {
		status := child.Tick(ctx, bb)

		switch status {
		case StatusSuccess:
			s.preempt(i)
			s.running = -1
			return StatusSuccess
		case StatusRunning:
			s.preempt(i)
			s.running = i
			return StatusRunning
		}
	}

	s.running = -1
	return StatusFailure
}

// preempt 中断上一次处于 Running 的其他子节点
func (s *Selector) preempt(winner int) {
	if s.running >= 0 && s.running != winner {
		s.children[s.running].Reset()
	}
}

func (s *Selector) Reset() {
	if s.running >= 0 {
		s.children[s.running].Reset()
	}
	s.running = -1
}
