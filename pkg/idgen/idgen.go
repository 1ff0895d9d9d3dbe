package idgen

import "sync/atomic"

// Generator 网络ID生成器，实现需要并发安全
type Generator interface {
	// NextID 生成下一个唯一ID，永不为 0
	NextID() (uint64, error)
}

// Sequence 进程内自增ID，用于测试和单机调试
type Sequence struct {
	n atomic.Uint64
}

// NewSequence 创建自增ID生成器，start 为第一个ID的前一个值
func NewSequence(start uint64) *Sequence {
	s := &Sequence{}
	s.n.Store(start)
	return s
}

func (s *Sequence) NextID() (uint64, error) {
	return s.n.Add(1), nil
}
