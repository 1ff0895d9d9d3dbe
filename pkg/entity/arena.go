package entity

// slot 槽位
type slot[T any] struct {
	gen   uint32
	alive bool
	value T
}

// Arena 基于代数的对象池
// 删除后槽位代数递增，旧句柄解析失败而不是指向新对象
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// NewArena 创建对象池
func NewArena[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots: make([]slot[T], 0, capacity),
	}
}

// Insert 插入对象并返回句柄
func (a *Arena[T]) Insert(v T) Handle {
	a.count++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.alive = true
		s.value = v
		return Handle{Index: idx, Gen: s.gen}
	}

	a.slots = append(a.slots, slot[T]{gen: 1, alive: true, value: v})
	return Handle{Index: uint32(len(a.slots) - 1), Gen: 1}
}

// Remove 删除对象，句柄失效
func (a *Arena[T]) Remove(h Handle) bool {
	if !a.Valid(h) {
		return false
	}
	s := &a.slots[h.Index]
	var zero T
	s.value = zero
	s.alive = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	a.free = append(a.free, h.Index)
	a.count--
	return true
}

// Valid 句柄是否仍指向存活对象
func (a *Arena[T]) Valid(h Handle) bool {
	if h.IsNil() || int(h.Index) >= len(a.slots) {
		return false
	}
	s := &a.slots[h.Index]
	return s.alive && s.gen == h.Gen
}

// Get 获取对象指针，句柄失效时返回 false
func (a *Arena[T]) Get(h Handle) (*T, bool) {
	if !a.Valid(h) {
		return nil, false
	}
	return &a.slots[h.Index].value, true
}

// Each 按槽位顺序遍历存活对象，fn 返回 false 时停止
func (a *Arena[T]) Each(fn func(h Handle, v *T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.alive {
			continue
		}
		if !fn(Handle{Index: uint32(i), Gen: s.gen}, &s.value) {
			return
		}
	}
}

// Len 存活对象数量
func (a *Arena[T]) Len() int {
	return a.count
}
