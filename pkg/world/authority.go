package world

import (
	"sync"
	"sync/atomic"

	"github.com/lk2023060901/xdooria-combat/pkg/entity"
)

// OwnerTable 权威表：整体开关 + 单实体覆盖
// 整体开关由所有权租约维护，可以在其他 goroutine 中切换
type OwnerTable struct {
	all       atomic.Bool
	mu        sync.RWMutex
	overrides map[entity.Handle]bool
}

// NewOwnerTable 创建权威表
func NewOwnerTable(owned bool) *OwnerTable {
	t := &OwnerTable{overrides: make(map[entity.Handle]bool)}
	t.all.Store(owned)
	return t
}

// SetAll 切换整体权威
func (t *OwnerTable) SetAll(owned bool) {
	t.all.Store(owned)
}

// Owned 整体权威状态
func (t *OwnerTable) Owned() bool {
	return t.all.Load()
}

// Set 单个实体的权威覆盖
func (t *OwnerTable) Set(h entity.Handle, owned bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overrides[h] = owned
}

// Forget 删除单个实体的覆盖
func (t *OwnerTable) Forget(h entity.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.overrides, h)
}

func (t *OwnerTable) IsAuthority(h entity.Handle) bool {
	t.mu.RLock()
	owned, ok := t.overrides[h]
	t.mu.RUnlock()
	if ok {
		return owned
	}
	return t.all.Load()
}
