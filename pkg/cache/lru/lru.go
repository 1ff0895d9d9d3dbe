// Package lru 带容量上限和惰性过期的 LRU 缓存
package lru

import (
	"container/list"
	"sync"
	"time"
)

// Config LRU 配置
type Config struct {
	// MaxSize 最大容量，<=0 表示不限
	MaxSize int `mapstructure:"max_size" json:"max_size"`
	// TTL 条目自最后访问起的存活时间，0 表示不过期
	TTL time.Duration `mapstructure:"ttl" json:"ttl"`
}

// LRU 并发安全的 LRU 缓存，过期条目在访问或插入时清理
type LRU[K comparable, V any] struct {
	config  Config
	ll      *list.List
	items   map[K]*list.Element
	mu      sync.Mutex
	now     func() time.Time
	onEvict func(key K, value V)
}

type entry[K comparable, V any] struct {
	key      K
	value    V
	lastUsed time.Time
}

// Option LRU 配置选项
type Option[K comparable, V any] func(*LRU[K, V])

// WithOnEvict 设置淘汰回调，回调在持锁状态下执行
func WithOnEvict[K comparable, V any](fn func(key K, value V)) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.onEvict = fn
	}
}

// WithClock 替换时钟，用于测试
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.now = now
	}
}

// New 创建 LRU 缓存
func New[K comparable, V any](cfg Config, opts ...Option[K, V]) *LRU[K, V] {
	c := &LRU[K, V]{
		config: cfg,
		ll:     list.New(),
		items:  make(map[K]*list.Element),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get 获取并刷新访问时间
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	now := c.now()
	if c.expired(e, now) {
		c.removeElement(el)
		return zero, false
	}
	e.lastUsed = now
	c.ll.MoveToFront(el)
	return e.value, true
}

// Set 写入或覆盖
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
}

// GetOrCreate 获取，不存在时用 create 创建并写入
func (c *LRU[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		if !c.expired(e, now) {
			e.lastUsed = now
			c.ll.MoveToFront(el)
			return e.value
		}
		c.removeElement(el)
	}
	v := create()
	c.set(key, v)
	return v
}

// Delete 删除
func (c *LRU[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Len 当前条目数（含尚未清理的过期条目）
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRU[K, V]) set(key K, value V) {
	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.lastUsed = now
		c.ll.MoveToFront(el)
		return
	}

	c.items[key] = c.ll.PushFront(&entry[K, V]{key: key, value: value, lastUsed: now})
	c.evict(now)
}

// evict 先清理尾部过期条目，再按容量淘汰
func (c *LRU[K, V]) evict(now time.Time) {
	for el := c.ll.Back(); el != nil; el = c.ll.Back() {
		e := el.Value.(*entry[K, V])
		overCap := c.config.MaxSize > 0 && c.ll.Len() > c.config.MaxSize
		if !overCap && !c.expired(e, now) {
			return
		}
		c.removeElement(el)
	}
}

func (c *LRU[K, V]) expired(e *entry[K, V], now time.Time) bool {
	return c.config.TTL > 0 && now.Sub(e.lastUsed) > c.config.TTL
}

func (c *LRU[K, V]) removeElement(el *list.Element) {
	e := c.ll.Remove(el).(*entry[K, V])
	delete(c.items, e.key)
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}
