package bytebuff

import (
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// Buffer 可复用的字节缓冲
type Buffer = bytebufferpool.ByteBuffer

// Pool 基于 valyala/bytebufferpool 的缓冲池，附带统计
type Pool struct {
	pool bytebufferpool.Pool
	gets atomic.Uint64
	puts atomic.Uint64
}

// Stats 池统计
type Stats struct {
	Gets     uint64 `json:"gets"`
	Puts     uint64 `json:"puts"`
	InFlight int64  `json:"in_flight"`
}

// NewPool 创建缓冲池
func NewPool() *Pool {
	return &Pool{}
}

// Get 获取一个空缓冲，用完必须 Put
func (p *Pool) Get() *Buffer {
	p.gets.Add(1)
	return p.pool.Get()
}

// Put 归还缓冲，归还后不得再访问其内容
func (p *Pool) Put(b *Buffer) {
	if b == nil {
		return
	}
	p.puts.Add(1)
	p.pool.Put(b)
}

// Stats 返回统计
func (p *Pool) Stats() Stats {
	gets, puts := p.gets.Load(), p.puts.Load()
	return Stats{Gets: gets, Puts: puts, InFlight: int64(gets) - int64(puts)}
}

var defaultPool = NewPool()

// Get 从默认池获取
func Get() *Buffer {
	return defaultPool.Get()
}

// Put 归还到默认池
func Put(b *Buffer) {
	defaultPool.Put(b)
}

// DefaultStats 默认池统计
func DefaultStats() Stats {
	return defaultPool.Stats()
}
