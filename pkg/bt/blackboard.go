package bt

import "github.com/lk2023060901/xdooria-combat/pkg/entity"

// 常用黑板键
const (
	KeyTarget     = "target"      // 当前目标（弱引用句柄）
	KeyTargetDist = "target_dist" // 目标距离缓存
	KeyLastScan   = "last_scan"   // 最近一次感知扫描时间
	KeyPatrolGoal = "patrol_goal" // 巡逻目的地
)

// Blackboard 黑板，单个 Agent 私有，仅在其自身 Tick 中读写
type Blackboard struct {
	data map[string]any
}

// NewBlackboard 创建黑板
func NewBlackboard() *Blackboard {
	return &Blackboard{
		data: make(map[string]any),
	}
}

// Set 设置数据
func (bb *Blackboard) Set(key string, value any) {
	bb.data[key] = value
}

// Get 获取数据
func (bb *Blackboard) Get(key string) (any, bool) {
	val, ok := bb.data[key]
	return val, ok
}

// GetString 获取字符串
func (bb *Blackboard) GetString(key string) (string, bool) {
	val, ok := bb.Get(key)
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt 获取整数
func (bb *Blackboard) GetInt(key string) (int, bool) {
	val, ok := bb.Get(key)
	if !ok {
		return 0, false
	}
	i, ok := val.(int)
	return i, ok
}

// GetFloat64 获取浮点数
func (bb *Blackboard) GetFloat64(key string) (float64, bool) {
	val, ok := bb.Get(key)
	if !ok {
		return 0, false
	}
	f, ok := val.(float64)
	return f, ok
}

// GetBool 获取布尔值
func (bb *Blackboard) GetBool(key string) (bool, bool) {
	val, ok := bb.Get(key)
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// Has 检查是否存在
func (bb *Blackboard) Has(key string) bool {
	_, ok := bb.data[key]
	return ok
}

// Delete 删除数据
func (bb *Blackboard) Delete(key string) {
	delete(bb.data, key)
}

// Clear 清空黑板
func (bb *Blackboard) Clear() {
	clear(bb.data)
}

// SetTarget 记录目标句柄，无效句柄等同于清除
func (bb *Blackboard) SetTarget(h entity.Handle) {
	if h.IsNil() {
		bb.ClearTarget()
		return
	}
	bb.data[KeyTarget] = h
}

// ClearTarget 清除目标及其缓存
func (bb *Blackboard) ClearTarget() {
	delete(bb.data, KeyTarget)
	delete(bb.data, KeyTargetDist)
}

// Target 返回仍然有效的目标
// 目标已失效时顺带清除，保证键不存在 ⇔ 没有有效目标
func (bb *Blackboard) Target(valid func(entity.Handle) bool) (entity.Handle, bool) {
	val, ok := bb.data[KeyTarget]
	if !ok {
		return entity.Nil, false
	}
	h, ok := val.(entity.Handle)
	if !ok || h.IsNil() || (valid != nil && !valid(h)) {
		bb.ClearTarget()
		return entity.Nil, false
	}
	return h, true
}

// PeekTarget 不做有效性检查直接读取目标
func (bb *Blackboard) PeekTarget() (entity.Handle, bool) {
	val, ok := bb.data[KeyTarget]
	if !ok {
		return entity.Nil, false
	}
	h, ok := val.(entity.Handle)
	return h, ok
}
